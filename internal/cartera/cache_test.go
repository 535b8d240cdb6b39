package cartera

import (
	"context"
	"sync"
	"testing"
	"time"

	"cobranza/internal/backend"
	"cobranza/internal/backend/memory"
	"cobranza/internal/core"
)

func testRoster() backend.RosterPayload {
	return backend.RosterPayload{
		Clients: []core.ClientRecord{
			{CreditID: "123456", Cycle: "04", Name: "Ana García"},
			{CreditID: "654321", Cycle: "02", Name: "Luis Pérez"},
		},
		Operations: []core.Operation{
			{CreditID: "123456", Sequence: 1, Amount: core.ParseAmount("100")},
		},
		Summary: &core.DailySummary{
			RangeLabel:      "28/08/2026 - 28/08/2026",
			TotalOperations: 1,
			TotalAmount:     core.ParseAmount("100"),
		},
	}
}

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(gw *memory.Gateway) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)}
	return New(gw, WithClock(clock.now)), clock
}

func TestRefreshUsesCacheWithinFreshnessWindow(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, clock := newTestCache(gw)
	ctx := context.Background()

	if _, err := cache.Refresh(ctx, false); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if gw.RosterCalls != 1 {
		t.Fatalf("RosterCalls = %d, want 1", gw.RosterCalls)
	}

	// One second later the cache is still fresh.
	clock.advance(time.Second)
	roster, err := cache.Refresh(ctx, false)
	if err != nil {
		t.Fatalf("cached refresh: %v", err)
	}
	if gw.RosterCalls != 1 {
		t.Errorf("RosterCalls = %d, want 1 (no network call)", gw.RosterCalls)
	}
	if len(roster) != 2 {
		t.Errorf("roster len = %d, want 2", len(roster))
	}

	// 25 hours later the window has expired.
	clock.advance(25 * time.Hour)
	if _, err := cache.Refresh(ctx, false); err != nil {
		t.Fatalf("stale refresh: %v", err)
	}
	if gw.RosterCalls != 2 {
		t.Errorf("RosterCalls = %d, want 2 after expiry", gw.RosterCalls)
	}
}

func TestRefreshForceBypassesFreshness(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, _ := newTestCache(gw)
	ctx := context.Background()

	cache.Refresh(ctx, false)
	cache.Refresh(ctx, true)

	if gw.RosterCalls != 2 {
		t.Errorf("RosterCalls = %d, want 2 with force", gw.RosterCalls)
	}
}

func TestRefreshFailureLeavesCacheUntouched(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, clock := newTestCache(gw)
	ctx := context.Background()

	if _, err := cache.Refresh(ctx, false); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}
	seeded, _ := cache.LastUpdate()

	clock.advance(26 * time.Hour)
	gw.FailRoster = true
	if _, err := cache.Refresh(ctx, false); err == nil {
		t.Fatal("expected refresh error")
	}

	// Stale data is preferable to none: everything survives the failure.
	if got := cache.Operations(); len(got) != 1 {
		t.Errorf("operations lost after failed refresh: %v", got)
	}
	if _, ok := cache.Summary(); !ok {
		t.Error("summary lost after failed refresh")
	}
	if ts, ok := cache.LastUpdate(); !ok || !ts.Equal(seeded) {
		t.Errorf("freshness timestamp changed: %v", ts)
	}
}

func TestRefreshNeverFetchedHasNilFreshness(t *testing.T) {
	cache, _ := newTestCache(memory.New())

	if _, ok := cache.LastUpdate(); ok {
		t.Error("LastUpdate reported before any successful fetch")
	}
	if _, ok := cache.Summary(); ok {
		t.Error("Summary reported before any successful fetch")
	}
}

func TestValidateCreditID(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, _ := newTestCache(gw)
	cache.Refresh(context.Background(), false)

	tests := []struct {
		name      string
		id        string
		wantValid bool
		wantMsg   string
	}{
		{name: "too short", id: "1234", wantValid: false, wantMsg: "El número de crédito debe tener 6 dígitos"},
		{name: "not in roster", id: "999999", wantValid: false, wantMsg: "El número de crédito no se encuentra en su cartera"},
		{name: "found", id: "123456", wantValid: true, wantMsg: "Crédito válido - Ana García"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cache.ValidateCreditID(tt.id)
			if v.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", v.Valid, tt.wantValid)
			}
			if v.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", v.Message, tt.wantMsg)
			}
			if tt.wantValid && (v.Client == nil || v.Client.CreditID != tt.id) {
				t.Errorf("Client = %+v", v.Client)
			}
		})
	}
}

func TestAccessorsReturnDefensiveCopies(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, _ := newTestCache(gw)
	cache.Refresh(context.Background(), false)

	ops := cache.Operations()
	ops[0].ClientName = "mutated"

	if again := cache.Operations(); again[0].ClientName == "mutated" {
		t.Error("caller mutation leaked into cached operations")
	}
}

func TestInvalidateResetsState(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, _ := newTestCache(gw)
	cache.Refresh(context.Background(), false)

	cache.Invalidate()

	if _, ok := cache.LastUpdate(); ok {
		t.Error("freshness survived Invalidate")
	}
	if len(cache.Operations()) != 0 {
		t.Error("operations survived Invalidate")
	}
	if v := cache.ValidateCreditID("123456"); v.Valid {
		t.Error("roster survived Invalidate")
	}
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	gw := memory.New()
	gw.Roster = testRoster()
	cache, _ := newTestCache(gw)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Refresh(ctx, false); err != nil {
				t.Errorf("concurrent refresh: %v", err)
			}
		}()
	}
	wg.Wait()

	// Coalescing cannot be asserted exactly, but 16 calls must not fan out
	// into 16 fetches.
	if gw.RosterCalls > 3 {
		t.Errorf("RosterCalls = %d, want coalesced refreshes", gw.RosterCalls)
	}
}
