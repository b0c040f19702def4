// Package reddit implements the authenticated Reddit listing client:
// credential lifecycle, adaptive rate limiting, and the retrying page
// fetcher the crawler is built on.
package reddit

import (
	"context"
	"time"
)

// Post is a single submission as returned by a /new listing.
type Post struct {
	RedditID     string
	Subreddit    string
	Author       string
	CreatedUTC   float64
	Score        int
	Permalink    string
	Title        string
	Body         string
	CommentCount int
}

// CreatedTime converts the epoch-seconds timestamp to UTC time.
func (p Post) CreatedTime() time.Time {
	return time.UnixMilli(int64(p.CreatedUTC * 1000)).UTC()
}

// Comment is a single comment as returned by a /comments listing.
type Comment struct {
	RedditID       string
	Subreddit      string
	Author         string
	CreatedUTC     float64
	Score          int
	Permalink      string
	Body           string
	ParentRedditID string
	PostRedditID   string
}

// CreatedTime converts the epoch-seconds timestamp to UTC time.
func (c Comment) CreatedTime() time.Time {
	return time.UnixMilli(int64(c.CreatedUTC * 1000)).UTC()
}

// Page is one page of a paginated listing. After is the opaque
// continuation cursor; empty means end of stream. The cursor must be
// passed back verbatim and never interpreted.
type Page[T any] struct {
	Items []T
	After string
}

// API is the listing surface the crawler consumes. Satisfied by Client
// and by MockClient for offline runs.
type API interface {
	NewPosts(ctx context.Context, subreddit, after string) (Page[Post], error)
	NewComments(ctx context.Context, subreddit, after string) (Page[Comment], error)
}
