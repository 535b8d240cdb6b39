// Package remote implements the backend ports against the lender's REST
// API. Authentication is a bearer token supplied by a TokenSource so the
// client never owns session state.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"cobranza/internal/backend"
	"cobranza/internal/core"
)

// API endpoints, fixed by the backend.
const (
	endpointRoster       = "/ConsultaClientesEjecutivo"
	endpointSummary      = "/ResumenDiario"
	endpointAddPayment   = "/AgregarPagoCliente"
	endpointPaymentTypes = "/CatalogoTiposPago"
)

// DefaultTimeout bounds every call. Field connectivity is poor enough that
// the backend allows multi-minute responses; past that the call fails and
// callers fall back to local data.
const DefaultTimeout = 5 * time.Minute

// TokenSource supplies the current bearer token.
type TokenSource func(ctx context.Context) (string, error)

// Client calls the lender backend over JSON/HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	token   TokenSource
}

// NewClient builds a client for baseURL. A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, token TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		token:   token,
	}
}

// GetSummary implements backend.SummaryGateway.
func (c *Client) GetSummary(ctx context.Context, startDate, endDate string) (backend.SummaryPayload, error) {
	var payload backend.SummaryPayload
	q := url.Values{}
	q.Set("fecha_inicio", startDate)
	q.Set("fecha_fin", endDate)

	if err := c.get(ctx, endpointSummary+"?"+q.Encode(), &payload); err != nil {
		return backend.SummaryPayload{}, fmt.Errorf("get summary: %w", err)
	}
	return payload, nil
}

// GetRoster implements backend.RosterGateway.
func (c *Client) GetRoster(ctx context.Context) (backend.RosterPayload, error) {
	var payload backend.RosterPayload
	if err := c.get(ctx, endpointRoster, &payload); err != nil {
		return backend.RosterPayload{}, fmt.Errorf("get roster: %w", err)
	}
	return payload, nil
}

// FetchPaymentTypes implements backend.CatalogFetcher.
func (c *Client) FetchPaymentTypes(ctx context.Context) ([]core.PaymentType, error) {
	var payload struct {
		Types []core.PaymentType `json:"tipos_pago"`
	}
	if err := c.get(ctx, endpointPaymentTypes, &payload); err != nil {
		return nil, fmt.Errorf("fetch payment types: %w", err)
	}
	if payload.Types == nil {
		return nil, fmt.Errorf("fetch payment types: response missing tipos_pago")
	}
	return payload.Types, nil
}

// SendPayment implements backend.PaymentSender.
func (c *Client) SendPayment(ctx context.Context, p core.PendingPayment) error {
	body := map[string]any{
		"credito":       p.CreditID,
		"ciclo":         p.Cycle,
		"tipo_pago":     p.TypeCode,
		"monto":         p.Amount.String(),
		"comentarios":   p.Comments,
		"fecha_captura": core.FormatTimestamp(p.CapturedAt),
	}
	if p.Latitude != nil {
		body["latitud"] = *p.Latitude
	}
	if p.Longitude != nil {
		body["longitud"] = *p.Longitude
	}

	if err := c.post(ctx, endpointAddPayment, body, nil); err != nil {
		return fmt.Errorf("send payment: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		token, err := c.token(req.Context())
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little of the body for the log, then report the status.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.WarnContext(req.Context(), "Backend returned non-success status",
			"path", req.URL.Path,
			"status", resp.StatusCode,
			"body", string(snippet))
		return fmt.Errorf("backend status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
