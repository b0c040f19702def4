package reddit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter serializes outbound calls: a single permit keeps at most one
// request in flight, a one-token bucket enforces a minimum interval
// between call starts, and a quota window derived from response headers
// blocks calls once the reported remaining budget is spent.
type Limiter struct {
	pace *rate.Limiter
	slot chan struct{}

	mu        sync.Mutex
	hasState  bool
	remaining float64
	resetAt   time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewLimiter returns a limiter spacing call starts by minInterval.
func NewLimiter(minInterval time.Duration) *Limiter {
	return &Limiter{
		pace:  rate.NewLimiter(rate.Every(minInterval), 1),
		slot:  make(chan struct{}, 1),
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Begin takes the in-flight permit, then waits out the quota window and
// the pacing bucket. A call already in flight blocks the next one until
// its End. Every successful Begin must be paired with End.
func (l *Limiter) Begin(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := l.WaitQuota(ctx); err != nil {
		l.End()
		return err
	}
	if err := l.Pace(ctx); err != nil {
		l.End()
		return err
	}
	return nil
}

// End releases the in-flight permit.
func (l *Limiter) End() {
	<-l.slot
}

// Pace blocks until the minimum inter-call spacing allows another call.
func (l *Limiter) Pace(ctx context.Context) error {
	return l.pace.Wait(ctx)
}

// WaitQuota blocks until the recorded quota window permits a call.
func (l *Limiter) WaitQuota(ctx context.Context) error {
	wait := l.QuotaWait()
	if wait <= 0 {
		return nil
	}
	return l.sleep(ctx, wait)
}

// QuotaWait reports how long a caller must wait before the quota window
// resets, or zero when budget remains.
func (l *Limiter) QuotaWait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasState || l.remaining > 1 {
		return 0
	}
	wait := l.resetAt.Sub(l.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Observe updates the quota state from x-ratelimit-remaining and
// x-ratelimit-reset headers. Responses without both headers leave the
// prior state untouched.
func (l *Limiter) Observe(headers http.Header) {
	remainingHeader := headers.Get("x-ratelimit-remaining")
	resetHeader := headers.Get("x-ratelimit-reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}

	remaining, err := strconv.ParseFloat(remainingHeader, 64)
	if err != nil {
		return
	}
	resetSeconds, err := strconv.ParseFloat(resetHeader, 64)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasState = true
	l.remaining = remaining
	l.resetAt = l.now().Add(time.Duration(resetSeconds * float64(time.Second)))
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
