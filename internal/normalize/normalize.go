// Package normalize maps Reddit-native items to canonical envelopes and
// drops duplicates introduced by the watermark overlap window.
package normalize

import (
	"strings"
	"time"

	"github.com/rsentiment/rsent/internal/item"
	"github.com/rsentiment/rsent/internal/reddit"
)

const (
	permalinkBase = "https://reddit.com"
	deletedAuthor = "[deleted]"
)

// Post builds the canonical envelope for a fetched post.
func Post(p reddit.Post, ingestedAt time.Time) item.RawPost {
	return item.RawPost{
		MessageVersion: item.MessageVersion,
		Source:         item.SourceReddit,
		ItemKind:       item.KindPost,
		RedditID:       p.RedditID,
		Subreddit:      p.Subreddit,
		Author:         normalizeAuthor(p.Author),
		CreatedAt:      isoTime(p.CreatedTime()),
		IngestedAt:     isoTime(ingestedAt),
		Score:          p.Score,
		Permalink:      absolutePermalink(p.Permalink),
		Title:          p.Title,
		Body:           p.Body,
		CommentCount:   p.CommentCount,
	}
}

// Comment builds the canonical envelope for a fetched comment.
func Comment(c reddit.Comment, ingestedAt time.Time) item.RawComment {
	return item.RawComment{
		MessageVersion: item.MessageVersion,
		Source:         item.SourceReddit,
		ItemKind:       item.KindComment,
		RedditID:       c.RedditID,
		Subreddit:      c.Subreddit,
		Author:         normalizeAuthor(c.Author),
		CreatedAt:      isoTime(c.CreatedTime()),
		IngestedAt:     isoTime(ingestedAt),
		Score:          c.Score,
		Permalink:      absolutePermalink(c.Permalink),
		Body:           c.Body,
		ParentRedditID: c.ParentRedditID,
		PostRedditID:   c.PostRedditID,
	}
}

// Merge normalizes one cycle's posts then comments in fetch order,
// keeping the first occurrence of each (kind, id). Overlap-window
// re-fetches repeat items within a kind; the seen-set drops them.
func Merge(posts []reddit.Post, comments []reddit.Comment, ingestedAt time.Time) []item.Item {
	seen := make(map[item.Key]struct{}, len(posts)+len(comments))
	items := make([]item.Item, 0, len(posts)+len(comments))

	for _, p := range posts {
		normalized := Post(p, ingestedAt)
		if _, ok := seen[normalized.Key()]; ok {
			continue
		}
		seen[normalized.Key()] = struct{}{}
		items = append(items, normalized)
	}

	for _, c := range comments {
		normalized := Comment(c, ingestedAt)
		if _, ok := seen[normalized.Key()]; ok {
			continue
		}
		seen[normalized.Key()] = struct{}{}
		items = append(items, normalized)
	}

	return items
}

func normalizeAuthor(author string) string {
	trimmed := strings.TrimSpace(author)
	if trimmed == "" {
		return deletedAuthor
	}
	return trimmed
}

func absolutePermalink(permalink string) string {
	if strings.HasPrefix(permalink, "http://") || strings.HasPrefix(permalink, "https://") {
		return permalink
	}
	return permalinkBase + permalink
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
