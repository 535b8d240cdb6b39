// Package resumen produces the daily summary the officer reviews: live
// server data when the backend is reachable, and otherwise an approximation
// merged from the portfolio cache plus payments captured locally but not yet
// synchronized. Network failure degrades, it never surfaces as a hard error.
package resumen

import (
	"context"
	"log/slog"

	"cobranza/internal/backend"
	"cobranza/internal/catalog"
	"cobranza/internal/core"
)

// Source tags where a summary result came from.
type Source string

const (
	// SourceRemote is live server data.
	SourceRemote Source = "remote"
	// SourceFallback is cached data merged with local pending payments.
	SourceFallback Source = "fallback-local"
	// SourceNoData means neither the server nor local data produced
	// anything. Terminal for the request; shown as an empty state.
	SourceNoData Source = "no-data"
)

// Display notices for non-remote outcomes.
const (
	noticeLocalData = "No se pudo conectar al servidor, mostrando datos locales."
	noticeNoData    = "No hay información disponible para mostrar"
)

// PortfolioCache is the read-only view of the cache the engine consults
// during fallback.
type PortfolioCache interface {
	Operations() []core.Operation
	Summary() (core.DailySummary, bool)
}

// Ledger lists payments captured offline, newest capture first.
type Ledger interface {
	ListPendingPayments(ctx context.Context) ([]core.PendingPayment, error)
}

// TypeResolver maps payment-type codes to labels from the local catalog.
type TypeResolver interface {
	ResolveLocal(ctx context.Context, code string) string
}

// Result is a summary outcome tagged with enough status for the caller to
// pick user-facing messaging. ResetView tells the caller to collapse its
// "show all" and "search open" state, as every populated fetch does.
type Result struct {
	Source     Source            `json:"source"`
	Summary    core.DailySummary `json:"resumen_diario"`
	Operations []core.Operation  `json:"detalle_operaciones"`
	Notice     string            `json:"aviso,omitempty"`
	ResetView  bool              `json:"-"`
}

type Engine struct {
	gateway backend.SummaryGateway
	cache   PortfolioCache
	ledger  Ledger
	types   TypeResolver
}

func NewEngine(gateway backend.SummaryGateway, cache PortfolioCache, ledger Ledger, types TypeResolver) *Engine {
	return &Engine{
		gateway: gateway,
		cache:   cache,
		ledger:  ledger,
		types:   types,
	}
}

// FetchSummary returns the summary and operation list for r. The only error
// it returns is core.ErrInvalidRange, rejected before any network call;
// every gateway failure resolves to a fallback or no-data result instead.
func (e *Engine) FetchSummary(ctx context.Context, r core.DateRange) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	payload, err := e.gateway.GetSummary(ctx, r.StartWire(), r.EndWire())
	if err != nil {
		slog.WarnContext(ctx, "Summary fetch failed, merging local data",
			"start", r.StartWire(),
			"end", r.EndWire(),
			"error", err)
		return e.fallback(ctx, r), nil
	}

	return Result{
		Source:     SourceRemote,
		Summary:    payload.Summary,
		Operations: payload.Operations,
		ResetView:  true,
	}, nil
}

// fallback merges the last cached roster-level summary with pending ledger
// entries. The merge is additive rather than range-aware: offline there is
// no per-range detail to recompute from, so cached totals plus pending
// totals is the best available approximation. It reads both stores and
// writes neither, so re-running it on the same snapshot yields identical
// totals.
func (e *Engine) fallback(ctx context.Context, r core.DateRange) Result {
	summary, hasSummary := e.cache.Summary()
	if !hasSummary {
		summary = core.DailySummary{RangeLabel: r.Label()}
	}
	cached := e.cache.Operations()

	pending, err := e.ledger.ListPendingPayments(ctx)
	if err != nil {
		// Non-fatal: proceed with whatever the cache had.
		slog.ErrorContext(ctx, "Failed to read pending payments during fallback", "error", err)
		pending = nil
	}

	merged := make([]core.Operation, 0, len(pending)+len(cached))
	for _, p := range pending {
		merged = append(merged, core.PendingOperation(p, e.resolveType(ctx, p.TypeCode)))
	}
	merged = append(merged, cached...)

	if len(pending) > 0 {
		summary.TotalOperations += int64(len(pending))
		summary.TotalAmount = summary.TotalAmount.Add(core.AmountFromDecimal(core.SumPendingAmounts(pending)))
	}

	if len(merged) == 0 {
		return Result{
			Source:    SourceNoData,
			Notice:    noticeNoData,
			ResetView: true,
		}
	}

	return Result{
		Source:     SourceFallback,
		Summary:    summary,
		Operations: merged,
		Notice:     noticeLocalData,
		ResetView:  true,
	}
}

func (e *Engine) resolveType(ctx context.Context, code string) string {
	if e.types == nil {
		return catalog.UnknownLabel
	}
	return e.types.ResolveLocal(ctx, code)
}
