// Package catalog resolves payment-type codes to display labels. The source
// of truth is the backend catalog endpoint; a copy is persisted locally so
// resolution keeps working offline, with a built-in default table as the
// last resort. Catalog failures are never fatal: unresolved codes degrade to
// a literal "Desconocido" label.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cobranza/internal/backend"
	"cobranza/internal/core"
)

// StorageKey is where the persisted copy lives in the key/value store.
const StorageKey = "tipos_pago_catalogo"

// UnknownLabel is used for codes the catalog cannot resolve.
const UnknownLabel = "Desconocido"

// defaultTypes is the built-in table used when no persisted copy exists.
var defaultTypes = []core.PaymentType{
	{Code: "P", Description: "PAGO"},
	{Code: "M", Description: "MULTA"},
}

// KeyValueStore is the persistence the catalog needs: opaque string blobs.
type KeyValueStore interface {
	GetValue(ctx context.Context, key string) (value string, ok bool, err error)
	SetValue(ctx context.Context, key, value string) error
}

type Catalog struct {
	store   KeyValueStore
	fetcher backend.CatalogFetcher
}

// New builds a catalog. fetcher may be nil for offline-only use.
func New(store KeyValueStore, fetcher backend.CatalogFetcher) *Catalog {
	return &Catalog{store: store, fetcher: fetcher}
}

// DefaultTypes returns a copy of the built-in table.
func DefaultTypes() []core.PaymentType {
	out := make([]core.PaymentType, len(defaultTypes))
	copy(out, defaultTypes)
	return out
}

// Refresh fetches the catalog from the backend and persists it. On any
// failure it logs and falls back to LocalTypes; fromRemote reports which
// copy the caller got.
func (c *Catalog) Refresh(ctx context.Context) (types []core.PaymentType, fromRemote bool) {
	if c.fetcher == nil {
		return c.LocalTypes(ctx), false
	}

	fetched, err := c.fetcher.FetchPaymentTypes(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Payment-type catalog fetch failed, using local copy", "error", err)
		return c.LocalTypes(ctx), false
	}

	if err := c.persist(ctx, fetched); err != nil {
		// The fetched copy is still good for this process lifetime.
		slog.WarnContext(ctx, "Failed to persist payment-type catalog", "error", err)
	}

	return fetched, true
}

// LocalTypes returns the persisted copy, or the built-in defaults when no
// copy exists or it cannot be read.
func (c *Catalog) LocalTypes(ctx context.Context) []core.PaymentType {
	if c.store == nil {
		return DefaultTypes()
	}

	raw, ok, err := c.store.GetValue(ctx, StorageKey)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read local payment-type catalog", "error", err)
		return DefaultTypes()
	}
	if !ok {
		return DefaultTypes()
	}

	var types []core.PaymentType
	if err := json.Unmarshal([]byte(raw), &types); err != nil {
		slog.WarnContext(ctx, "Corrupt local payment-type catalog, using defaults", "error", err)
		return DefaultTypes()
	}
	if len(types) == 0 {
		return DefaultTypes()
	}
	return types
}

// ResolveLocal maps a payment-type code to its description using the local
// copy only. Unresolved codes map to UnknownLabel.
func (c *Catalog) ResolveLocal(ctx context.Context, code string) string {
	for _, t := range c.LocalTypes(ctx) {
		if t.Code == code {
			return t.Description
		}
	}
	return UnknownLabel
}

func (c *Catalog) persist(ctx context.Context, types []core.PaymentType) error {
	if c.store == nil {
		return nil
	}
	data, err := json.Marshal(types)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := c.store.SetValue(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("store catalog: %w", err)
	}
	return nil
}
