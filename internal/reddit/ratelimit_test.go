package reddit

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func quotaHeaders(remaining, reset string) http.Header {
	h := http.Header{}
	if remaining != "" {
		h.Set("x-ratelimit-remaining", remaining)
	}
	if reset != "" {
		h.Set("x-ratelimit-reset", reset)
	}
	return h
}

func testLimiter(now time.Time) *Limiter {
	l := NewLimiter(time.Nanosecond)
	l.now = func() time.Time { return now }
	return l
}

func TestLimiter_NoStateNoWait(t *testing.T) {
	l := testLimiter(time.Now())
	if wait := l.QuotaWait(); wait != 0 {
		t.Fatalf("wait = %v, want 0", wait)
	}
}

func TestLimiter_BudgetRemainingNoWait(t *testing.T) {
	l := testLimiter(time.Now())
	l.Observe(quotaHeaders("42.5", "120"))
	if wait := l.QuotaWait(); wait != 0 {
		t.Fatalf("wait = %v, want 0", wait)
	}
}

func TestLimiter_ExhaustedBudgetWaitsUntilReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := testLimiter(now)
	l.Observe(quotaHeaders("1", "30"))

	if wait := l.QuotaWait(); wait != 30*time.Second {
		t.Fatalf("wait = %v, want 30s", wait)
	}

	// Past the reset instant nothing blocks.
	l.now = func() time.Time { return now.Add(31 * time.Second) }
	if wait := l.QuotaWait(); wait != 0 {
		t.Fatalf("wait after reset = %v, want 0", wait)
	}
}

func TestLimiter_MissingHeadersKeepState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := testLimiter(now)
	l.Observe(quotaHeaders("0", "60"))

	l.Observe(http.Header{})
	l.Observe(quotaHeaders("5", ""))
	l.Observe(quotaHeaders("", "10"))

	if wait := l.QuotaWait(); wait != 60*time.Second {
		t.Fatalf("wait = %v, want 60s (state regressed)", wait)
	}
}

func TestLimiter_UnparsableHeadersIgnored(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := testLimiter(now)
	l.Observe(quotaHeaders("0", "60"))

	l.Observe(quotaHeaders("many", "60"))
	l.Observe(quotaHeaders("0", "soon"))

	if wait := l.QuotaWait(); wait != 60*time.Second {
		t.Fatalf("wait = %v, want 60s", wait)
	}
}

func TestLimiter_BeginBlocksWhileCallInFlight(t *testing.T) {
	l := testLimiter(time.Now())

	if err := l.Begin(context.Background()); err != nil {
		t.Fatalf("first begin: %v", err)
	}

	second := make(chan error, 1)
	go func() { second <- l.Begin(context.Background()) }()

	select {
	case <-second:
		t.Fatal("second call began while the first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	l.End()

	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("second begin: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second call never began after End")
	}
	l.End()
}

func TestLimiter_BeginHonorsCancellation(t *testing.T) {
	l := testLimiter(time.Now())

	if err := l.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer l.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Begin(ctx); err == nil {
		t.Fatal("expected context error while the permit is held")
	}
}

func TestLimiter_WaitQuotaSleeps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := testLimiter(now)

	var slept []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	l.Observe(quotaHeaders("0", "2"))
	if err := l.WaitQuota(context.Background()); err != nil {
		t.Fatalf("wait quota: %v", err)
	}

	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("slept = %v, want [2s]", slept)
	}
}
