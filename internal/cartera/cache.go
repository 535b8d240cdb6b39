// Package cartera holds the portfolio cache: the last successfully fetched
// client roster, operation detail and daily summary, with a freshness
// window. The reconciliation engine reads it during fallback but never
// writes it; the only writers are Refresh and Invalidate.
package cartera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"cobranza/internal/backend"
	"cobranza/internal/core"
)

// DefaultFreshness is how long a roster fetch stays valid.
const DefaultFreshness = 24 * time.Hour

// Validation is the outcome of a credit-id check. Absence from the roster
// is a normal outcome, not an error.
type Validation struct {
	Valid   bool               `json:"valido"`
	Client  *core.ClientRecord `json:"cliente,omitempty"`
	Message string             `json:"mensaje"`
}

type Cache struct {
	gateway   backend.RosterGateway
	freshness time.Duration
	now       func() time.Time

	flight singleflight.Group

	mu         sync.RWMutex
	clients    []core.ClientRecord
	byCredit   map[string]core.ClientRecord
	operations []core.Operation
	summary    *core.DailySummary
	lastUpdate time.Time
}

// Option adjusts cache construction. Tests inject a clock this way.
type Option func(*Cache)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithFreshness replaces the 24h freshness window.
func WithFreshness(d time.Duration) Option {
	return func(c *Cache) { c.freshness = d }
}

func New(gateway backend.RosterGateway, opts ...Option) *Cache {
	c := &Cache{
		gateway:   gateway,
		freshness: DefaultFreshness,
		now:       time.Now,
		byCredit:  make(map[string]core.ClientRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh returns the roster, fetching it from the backend when the cached
// copy is missing, stale, or force is set. On success the roster, operation
// detail, summary and freshness timestamp are replaced together; on failure
// the cache is left untouched and the error returned, so stale data remains
// available. Concurrent refreshes are coalesced into a single fetch.
func (c *Cache) Refresh(ctx context.Context, force bool) ([]core.ClientRecord, error) {
	if !force {
		if roster, ok := c.freshRoster(); ok {
			return roster, nil
		}
	}

	v, err, _ := c.flight.Do("roster", func() (any, error) {
		// Re-check under the flight: a concurrent caller may have just
		// refreshed while this one was queued.
		if !force {
			if roster, ok := c.freshRoster(); ok {
				return roster, nil
			}
		}

		payload, err := c.gateway.GetRoster(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh portfolio: %w", err)
		}

		c.store(payload)

		slog.InfoContext(ctx, "Portfolio refreshed",
			"clients", len(payload.Clients),
			"operations", len(payload.Operations))

		return copyClients(payload.Clients), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]core.ClientRecord), nil
}

// ValidateCreditID checks that id has the fixed six-digit format and exists
// in the roster, returning a display message for every outcome.
func (c *Cache) ValidateCreditID(id string) Validation {
	if len(id) != core.CreditIDLen {
		return Validation{Message: "El número de crédito debe tener 6 dígitos"}
	}

	c.mu.RLock()
	client, ok := c.byCredit[id]
	c.mu.RUnlock()

	if !ok {
		return Validation{Message: "El número de crédito no se encuentra en su cartera"}
	}

	record := client
	return Validation{
		Valid:   true,
		Client:  &record,
		Message: fmt.Sprintf("Crédito válido - %s", client.Name),
	}
}

// ClientByCreditID looks up a roster entry.
func (c *Cache) ClientByCreditID(id string) (core.ClientRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	client, ok := c.byCredit[id]
	return client, ok
}

// Operations returns a copy of the cached operation detail.
func (c *Cache) Operations() []core.Operation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Operation, len(c.operations))
	copy(out, c.operations)
	return out
}

// Summary returns a copy of the cached daily summary; ok is false when no
// successful fetch has stored one.
func (c *Cache) Summary() (core.DailySummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.summary == nil {
		return core.DailySummary{}, false
	}
	return *c.summary, true
}

// LastUpdate reports the freshness timestamp; ok is false when no
// successful fetch has ever completed.
func (c *Cache) LastUpdate() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate, !c.lastUpdate.IsZero()
}

// Invalidate clears the cache back to its initial state.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = nil
	c.byCredit = make(map[string]core.ClientRecord)
	c.operations = nil
	c.summary = nil
	c.lastUpdate = time.Time{}
}

func (c *Cache) freshRoster() ([]core.ClientRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.clients) == 0 || c.lastUpdate.IsZero() {
		return nil, false
	}
	if c.now().Sub(c.lastUpdate) >= c.freshness {
		return nil, false
	}
	return copyClients(c.clients), true
}

func (c *Cache) store(payload backend.RosterPayload) {
	byCredit := make(map[string]core.ClientRecord, len(payload.Clients))
	for _, client := range payload.Clients {
		byCredit[client.CreditID] = client
	}

	var summary *core.DailySummary
	if payload.Summary != nil {
		s := *payload.Summary
		summary = &s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = copyClients(payload.Clients)
	c.byCredit = byCredit
	c.operations = make([]core.Operation, len(payload.Operations))
	copy(c.operations, payload.Operations)
	c.summary = summary
	c.lastUpdate = c.now()
}

func copyClients(in []core.ClientRecord) []core.ClientRecord {
	out := make([]core.ClientRecord, len(in))
	copy(out, in)
	return out
}
