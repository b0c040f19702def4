// Package crawl walks a cursor-paginated listing backwards in time
// until it reaches a watermark lower bound.
package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/rsentiment/rsent/internal/reddit"
)

// DefaultMaxPages caps one crawl pass so a cold source cannot pin the
// cycle on a single listing.
const DefaultMaxPages = 25

// Timestamped is anything carrying a creation instant. Satisfied by
// reddit.Post and reddit.Comment.
type Timestamped interface {
	CreatedTime() time.Time
}

// Pager fetches one page of a listing. The after cursor from page N is
// passed back verbatim to request page N+1; empty means start.
type Pager[T Timestamped] func(ctx context.Context, after string) (reddit.Page[T], error)

// Result accumulates one crawl pass over a listing.
type Result[T Timestamped] struct {
	Items             []T
	PagesFetched      int
	ReachedLowerBound bool
	NewestSeen        time.Time
	OldestSeen        time.Time
}

// Since follows continuation cursors collecting items created at or
// after lowerBound, newest first. It stops at the first of: an item
// older than lowerBound, an empty page, an absent cursor, or maxPages
// pages fetched.
//
// Precondition: listings are ordered newest-first. An out-of-order
// stream can hide newer items behind an older one; the overlap window
// and downstream uniqueness absorb small violations only.
func Since[T Timestamped](ctx context.Context, fetch Pager[T], lowerBound time.Time, maxPages int) (Result[T], error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var result Result[T]
	after := ""

	for result.PagesFetched < maxPages {
		page, err := fetch(ctx, after)
		if err != nil {
			return result, fmt.Errorf("fetch page %d: %w", result.PagesFetched+1, err)
		}
		result.PagesFetched++

		if len(page.Items) == 0 {
			break
		}

		for _, it := range page.Items {
			createdAt := it.CreatedTime()

			if result.NewestSeen.IsZero() || createdAt.After(result.NewestSeen) {
				result.NewestSeen = createdAt
			}
			if result.OldestSeen.IsZero() || createdAt.Before(result.OldestSeen) {
				result.OldestSeen = createdAt
			}

			if createdAt.Before(lowerBound) {
				result.ReachedLowerBound = true
				break
			}

			result.Items = append(result.Items, it)
		}

		if result.ReachedLowerBound || page.After == "" {
			break
		}
		after = page.After
	}

	return result, nil
}
