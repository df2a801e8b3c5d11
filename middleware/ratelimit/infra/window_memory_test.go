package infra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"summary-gateway/middleware/ratelimit/domain"
)

var (
	summarizePolicy = domain.Policy{ID: "generate-summary", Window: time.Hour, MaxRequests: 5, RetryAfter: time.Hour}
	sharePolicy     = domain.Policy{ID: "share-summary", Window: time.Minute, MaxRequests: 5, RetryAfter: time.Minute}
)

func TestMemoryCounterStore_AdmitsUpToMaxThenDenies(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)
	ctx := context.Background()

	for i := 1; i <= summarizePolicy.MaxRequests; i++ {
		c, ok, err := s.Take(ctx, "10.0.0.1", summarizePolicy, now)
		if err != nil || !ok {
			t.Fatalf("expected take %d to be admitted, ok=%v err=%v", i, ok, err)
		}
		if c.Count != i {
			t.Fatalf("expected count=%d, got %d", i, c.Count)
		}
	}

	c, ok, _ := s.Take(ctx, "10.0.0.1", summarizePolicy, now.Add(time.Minute))
	if ok {
		t.Fatalf("expected take beyond max to be denied")
	}
	if c.Count != summarizePolicy.MaxRequests {
		t.Fatalf("count must never exceed max, got %d", c.Count)
	}
	if !c.WindowStart.Equal(now) {
		t.Fatalf("expected window start to stay at first request, got %s", c.WindowStart)
	}
}

func TestMemoryCounterStore_NewWindowResetsCount(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)
	ctx := context.Background()

	for i := 0; i < sharePolicy.MaxRequests; i++ {
		_, _, _ = s.Take(ctx, "k", sharePolicy, now)
	}
	if _, ok, _ := s.Take(ctx, "k", sharePolicy, now.Add(59*time.Second)); ok {
		t.Fatalf("expected denied before window end")
	}

	c, ok, _ := s.Take(ctx, "k", sharePolicy, now.Add(sharePolicy.Window))
	if !ok {
		t.Fatalf("expected admitted in a new window")
	}
	if c.Count != 1 {
		t.Fatalf("expected count reset to 1, got %d", c.Count)
	}
}

func TestMemoryCounterStore_IdentitiesAndPoliciesAreIndependent(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)
	ctx := context.Background()

	for i := 0; i < summarizePolicy.MaxRequests; i++ {
		_, _, _ = s.Take(ctx, "10.0.0.1", summarizePolicy, now)
	}
	if _, ok, _ := s.Take(ctx, "10.0.0.1", summarizePolicy, now); ok {
		t.Fatalf("expected summarize quota exhausted")
	}

	if _, ok, _ := s.Take(ctx, "10.0.0.2", summarizePolicy, now); !ok {
		t.Fatalf("other identity must not share the counter")
	}
	if _, ok, _ := s.Take(ctx, "10.0.0.1", sharePolicy, now); !ok {
		t.Fatalf("share policy must not share the summarize counter")
	}
}

func TestMemoryCounterStore_ConcurrentTakesNeverExceedMax(t *testing.T) {
	s := NewMemoryCounterStore()
	now := time.Unix(1_700_000_000, 0)
	p := domain.Policy{ID: "p", Window: time.Hour, MaxRequests: 50}

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := s.Take(context.Background(), "same", p, now); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != int64(p.MaxRequests) {
		t.Fatalf("expected exactly %d admitted, got %d", p.MaxRequests, got)
	}
}

func TestMemoryCounterStore_CleanupRemovesExpiredWindows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := now
	s := NewMemoryCounterStore(WithCounterClock(func() time.Time { return clock }), WithCounterCleanupEvery(0))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, _ = s.Take(ctx, domain.Key(fmt.Sprintf("10.0.0.%d", i)), sharePolicy, now)
	}
	_, _, _ = s.Take(ctx, "10.0.0.9", summarizePolicy, now)

	clock = now.Add(2 * time.Minute)
	s.Cleanup()

	if got := s.Len(); got != 1 {
		t.Fatalf("expected only the hourly counter to survive, got %d entries", got)
	}
}
