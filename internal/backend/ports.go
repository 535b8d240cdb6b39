package backend

import (
	"context"

	"cobranza/internal/core"
)

// Ports for outbound adapters. The remote package implements them against
// the lender's REST backend; the memory package fakes them for tests and
// offline development.
type (
	// SummaryGateway returns the daily summary plus the detailed operation
	// list for an inclusive date range. Dates travel as YYYY-MM-DD,
	// oldest-first. Implementations must resolve within a bounded timeout
	// and return an error instead of hanging.
	SummaryGateway interface {
		GetSummary(ctx context.Context, startDate, endDate string) (SummaryPayload, error)
	}

	// RosterGateway returns the executive's full portfolio: client roster,
	// last operation detail and the current daily summary.
	RosterGateway interface {
		GetRoster(ctx context.Context) (RosterPayload, error)
	}

	// PaymentSender pushes a locally captured payment to the backend.
	PaymentSender interface {
		SendPayment(ctx context.Context, p core.PendingPayment) error
	}

	// CatalogFetcher retrieves the payment-type catalog.
	CatalogFetcher interface {
		FetchPaymentTypes(ctx context.Context) ([]core.PaymentType, error)
	}
)

// SummaryPayload is the summary endpoint envelope.
type SummaryPayload struct {
	Summary    core.DailySummary `json:"resumen_diario"`
	Operations []core.Operation  `json:"detalle_operaciones"`
}

// RosterPayload is the roster endpoint envelope. The summary may be absent
// when the executive has no operations yet.
type RosterPayload struct {
	Clients    []core.ClientRecord `json:"clientes"`
	Operations []core.Operation    `json:"detalle_operaciones"`
	Summary    *core.DailySummary  `json:"resumen_diario"`
}
