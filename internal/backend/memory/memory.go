// Package memory provides an in-memory implementation of the backend ports
// for tests and offline development.
package memory

import (
	"context"
	"errors"
	"sync"

	"cobranza/internal/backend"
	"cobranza/internal/core"
)

// ErrUnavailable is returned when a gateway is switched to failure mode.
var ErrUnavailable = errors.New("backend unavailable")

// Gateway implements every backend port with canned data. Failure can be
// toggled per call site to exercise fallback paths.
type Gateway struct {
	mu sync.Mutex

	Roster       backend.RosterPayload
	Summary      backend.SummaryPayload
	PaymentTypes []core.PaymentType

	FailSummary bool
	FailRoster  bool
	FailCatalog bool
	FailPayment bool

	SummaryCalls int
	RosterCalls  int
	SentPayments []core.PendingPayment
}

// New returns an empty gateway.
func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) GetSummary(ctx context.Context, startDate, endDate string) (backend.SummaryPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.SummaryCalls++
	if g.FailSummary {
		return backend.SummaryPayload{}, ErrUnavailable
	}
	return g.Summary, nil
}

func (g *Gateway) GetRoster(ctx context.Context) (backend.RosterPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RosterCalls++
	if g.FailRoster {
		return backend.RosterPayload{}, ErrUnavailable
	}
	return g.Roster, nil
}

func (g *Gateway) FetchPaymentTypes(ctx context.Context) ([]core.PaymentType, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCatalog {
		return nil, ErrUnavailable
	}
	return g.PaymentTypes, nil
}

func (g *Gateway) SendPayment(ctx context.Context, p core.PendingPayment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailPayment {
		return ErrUnavailable
	}
	g.SentPayments = append(g.SentPayments, p)
	return nil
}
