package http

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiterSustainedRate(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	metrics := &securityMetrics{}
	for i := 0; i < sustainedPerWindow; i++ {
		if !rl.allow("10.0.0.1", metrics) {
			t.Fatalf("request %d rejected within sustained rate", i+1)
		}
	}
	if hits := atomic.LoadInt64(&metrics.rateLimitHits); hits != 0 {
		t.Errorf("rateLimitHits = %d, want 0", hits)
	}
}

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	metrics := &securityMetrics{}
	total := sustainedPerWindow + burstAllowance
	for i := 0; i < total; i++ {
		if !rl.allow("10.0.0.2", metrics) {
			t.Fatalf("request %d rejected before burst exhausted", i+1)
		}
	}
	if rl.allow("10.0.0.2", metrics) {
		t.Error("request beyond sustained rate plus burst should be rejected")
	}
	if hits := atomic.LoadInt64(&metrics.rateLimitHits); hits != 1 {
		t.Errorf("rateLimitHits = %d, want 1", hits)
	}
}

func TestRateLimiterWindowResetKeepsBurstSpent(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	total := sustainedPerWindow + burstAllowance
	for i := 0; i < total; i++ {
		rl.allow("10.0.0.3", nil)
	}

	// Roll the window back past its length: the sustained counter resets
	// but the spent burst does not come back.
	rl.mu.Lock()
	rl.clients["10.0.0.3"].windowStart = time.Now().Add(-limiterWindow - time.Second)
	rl.mu.Unlock()

	for i := 0; i < sustainedPerWindow; i++ {
		if !rl.allow("10.0.0.3", nil) {
			t.Fatalf("request %d rejected after window reset", i+1)
		}
	}
	if rl.allow("10.0.0.3", nil) {
		t.Error("burst allowance should stay spent across window resets")
	}
}

func TestRateLimiterPerClientIsolation(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	total := sustainedPerWindow + burstAllowance
	for i := 0; i < total; i++ {
		rl.allow("10.0.0.4", nil)
	}
	if rl.allow("10.0.0.4", nil) {
		t.Fatal("first client should be exhausted")
	}
	if !rl.allow("10.0.0.5", nil) {
		t.Error("second client should not be affected by the first")
	}
}

func TestRateLimiterEvictStale(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 5; i++ {
		rl.allow(fmt.Sprintf("10.0.1.%d", i), nil)
	}

	rl.mu.Lock()
	rl.clients["10.0.1.0"].windowStart = time.Now().Add(-limiterStaleAfter - time.Second)
	rl.mu.Unlock()

	rl.evictStale(time.Now())

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.clients["10.0.1.0"]; ok {
		t.Error("stale client entry should be evicted")
	}
	if len(rl.clients) != 4 {
		t.Errorf("len(clients) = %d, want 4", len(rl.clients))
	}
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	rl := newRateLimiter()
	rl.stop()
	rl.stop()
}
