package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mutating requests come from field devices flushing offline captures, so
// the limiter grants a burst on top of the sustained rate: a device that
// reconnects after a day in the field posts its whole queue at once.
const (
	sustainedPerWindow = 30
	burstAllowance     = 15
	limiterWindow      = time.Minute
	limiterStaleAfter  = 3 * limiterWindow
	cleanupInterval    = limiterWindow
)

// rateLimiter tracks POST volume per client IP across fixed windows.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientWindow struct {
	windowStart time.Time
	requests    int
	burstLeft   int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

// evictStale drops clients whose window closed long enough ago that their
// burst allowance should start over.
func (rl *rateLimiter) evictStale(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-limiterStaleAfter)
	for ip, w := range rl.clients {
		if w.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop terminates the cleanup goroutine. Safe to call more than once.
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow reports whether a mutating request from clientIP fits the current
// window. The sustained rate resets each window; the burst allowance does
// not, so a flush of queued captures is absorbed once and then the client
// settles onto the sustained rate until it goes stale.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.clients[clientIP]
	if !ok {
		rl.clients[clientIP] = &clientWindow{
			windowStart: now,
			requests:    1,
			burstLeft:   burstAllowance,
		}
		return true
	}

	if now.Sub(w.windowStart) >= limiterWindow {
		w.windowStart = now
		w.requests = 1
		return true
	}

	w.requests++
	if w.requests <= sustainedPerWindow {
		return true
	}
	if w.burstLeft > 0 {
		w.burstLeft--
		return true
	}

	if metrics != nil {
		atomic.AddInt64(&metrics.rateLimitHits, 1)
	}
	return false
}
