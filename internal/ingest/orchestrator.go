// Package ingest drives the crawl cycle: per enabled source it crawls
// posts and comments from the watermark, normalizes and publishes the
// batch, then advances the watermark, pacing itself to a poll interval
// with cooperative shutdown.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rsentiment/rsent/internal/crawl"
	"github.com/rsentiment/rsent/internal/item"
	"github.com/rsentiment/rsent/internal/normalize"
	"github.com/rsentiment/rsent/internal/reddit"
	"github.com/rsentiment/rsent/internal/registry"
)

// The lower bound is pulled back by this much so late-visible items in
// the trailing slice are re-fetched; dedup absorbs the repeats.
const watermarkOverlap = 60 * time.Second

// Registry lists enabled sources and persists their watermarks.
type Registry interface {
	ListEnabled(ctx context.Context) ([]registry.Subreddit, error)
	UpdateLastCrawledAt(ctx context.Context, id int64, crawledAt time.Time) error
}

// Publisher forwards canonical envelopes to the bus.
type Publisher interface {
	Publish(ctx context.Context, items []item.Item) (int, error)
}

// Options tune the orchestrator. Zero values take defaults.
type Options struct {
	PollInterval time.Duration
	Backfill     time.Duration
	MaxPages     int
}

const (
	defaultPollInterval = time.Minute
	defaultBackfill     = 2 * 24 * time.Hour
)

// Orchestrator runs crawl cycles over every enabled source.
type Orchestrator struct {
	registry  Registry
	client    reddit.API
	publisher Publisher
	log       *slog.Logger

	pollInterval time.Duration
	backfill     time.Duration
	maxPages     int

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New validates the collaborators and returns an orchestrator.
func New(reg Registry, client reddit.API, pub Publisher, log *slog.Logger, opts Options) (*Orchestrator, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if client == nil {
		return nil, errors.New("reddit client is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if log == nil {
		log = slog.Default()
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Backfill <= 0 {
		opts.Backfill = defaultBackfill
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = crawl.DefaultMaxPages
	}

	return &Orchestrator{
		registry:     reg,
		client:       client,
		publisher:    pub,
		log:          log.With("component", "orchestrator"),
		pollInterval: opts.PollInterval,
		backfill:     opts.Backfill,
		maxPages:     opts.MaxPages,
		now:          time.Now,
		sleep:        sleepContext,
	}, nil
}

// Run loops crawl cycles until ctx is cancelled, sleeping whatever
// remains of the poll interval between cycles. Shutdown is cooperative:
// cancellation is observed between sources and before each sleep, and a
// source pass in flight finishes first.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		cycleStart := o.now()
		o.runCycle(ctx, cycleStart)

		if ctx.Err() != nil {
			return nil
		}

		wait := o.pollInterval - o.now().Sub(cycleStart)
		if wait < 0 {
			wait = 0
		}
		if err := o.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// RunOnce executes a single crawl cycle. Backs the one-shot command.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	o.runCycle(ctx, o.now())
	return ctx.Err()
}

// runCycle never fails the loop: a listing failure is logged and the
// orchestrator retries next cycle; a single source's failure is logged
// and the cycle moves to the next source.
func (o *Orchestrator) runCycle(ctx context.Context, cycleStart time.Time) {
	log := o.log.With("cycle", uuid.NewString())

	subs, err := o.registry.ListEnabled(ctx)
	if err != nil {
		log.Error("listing enabled subreddits failed", "err", err)
		return
	}
	if len(subs) == 0 {
		log.Warn("no enabled subreddits found")
		return
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		if err := o.crawlSubreddit(ctx, log, sub, cycleStart); err != nil {
			log.Error("subreddit crawl failed", "subreddit", sub.Name, "err", err)
		}
	}
}

func (o *Orchestrator) crawlSubreddit(ctx context.Context, log *slog.Logger, sub registry.Subreddit, cycleStart time.Time) error {
	lowerBound := o.lowerBound(sub.LastCrawledAt, cycleStart)

	// Both passes start before either is awaited; the shared limiter
	// serializes the actual network calls.
	var (
		postResult    crawl.Result[reddit.Post]
		commentResult crawl.Result[reddit.Comment]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result, err := crawl.Since(gctx, func(ctx context.Context, after string) (reddit.Page[reddit.Post], error) {
			return o.client.NewPosts(ctx, sub.Name, after)
		}, lowerBound, o.maxPages)
		postResult = result
		return err
	})
	g.Go(func() error {
		result, err := crawl.Since(gctx, func(ctx context.Context, after string) (reddit.Page[reddit.Comment], error) {
			return o.client.NewComments(ctx, sub.Name, after)
		}, lowerBound, o.maxPages)
		commentResult = result
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("crawl r/%s: %w", sub.Name, err)
	}

	ingestedAt := o.now()
	items := normalize.Merge(postResult.Items, commentResult.Items, ingestedAt)

	published, err := o.publisher.Publish(ctx, items)
	if err != nil {
		return fmt.Errorf("publish r/%s (%d of %d delivered): %w", sub.Name, published, len(items), err)
	}

	nextWatermark := cycleStart
	if postResult.NewestSeen.After(nextWatermark) {
		nextWatermark = postResult.NewestSeen
	}
	if commentResult.NewestSeen.After(nextWatermark) {
		nextWatermark = commentResult.NewestSeen
	}
	if err := o.registry.UpdateLastCrawledAt(ctx, sub.ID, nextWatermark); err != nil {
		return fmt.Errorf("advance watermark for r/%s: %w", sub.Name, err)
	}

	log.Info("completed subreddit crawl cycle",
		"subreddit", sub.Name,
		"lowerBound", lowerBound.UTC().Format(time.RFC3339),
		"postsFetched", len(postResult.Items),
		"commentsFetched", len(commentResult.Items),
		"postPagesFetched", postResult.PagesFetched,
		"commentPagesFetched", commentResult.PagesFetched,
		"reachedPostLowerBound", postResult.ReachedLowerBound,
		"reachedCommentLowerBound", commentResult.ReachedLowerBound,
		"published", published,
		"updatedLastCrawledAt", nextWatermark.UTC().Format(time.RFC3339),
	)
	return nil
}

// lowerBound computes where a source's crawl resumes: the backfill
// window for never-crawled sources, otherwise the watermark pulled back
// by the overlap window.
func (o *Orchestrator) lowerBound(lastCrawledAt *time.Time, cycleStart time.Time) time.Time {
	if lastCrawledAt == nil {
		return cycleStart.Add(-o.backfill)
	}

	overlapped := lastCrawledAt.Add(-watermarkOverlap)
	if epoch := time.Unix(0, 0).UTC(); overlapped.Before(epoch) {
		return epoch
	}
	return overlapped
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
