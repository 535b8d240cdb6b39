package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"cobranza/internal/core"
	applog "cobranza/internal/log"
	"cobranza/internal/resumen"
)

// summaryResponse is the wire shape of a summary lookup. Operations carry
// the filtered and sorted view; the full count is reported separately so
// clients know when the display slice was truncated.
type summaryResponse struct {
	Source     resumen.Source    `json:"source"`
	Summary    core.DailySummary `json:"resumen_diario"`
	Operations []core.Operation  `json:"detalle_operaciones"`
	Total      int               `json:"total_operaciones"`
	Notice     string            `json:"aviso,omitempty"`
}

func (s *Server) handleResumen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	dateRange, err := parseRange(q.Get("inicio"), q.Get("fin"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.FetchSummary(r.Context(), dateRange)
	if err != nil {
		if errors.Is(err, core.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "fecha inicial posterior a la fecha final")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Summary fetch error", "error", err)
		writeError(w, http.StatusInternalServerError, "error consultando el resumen")
		return
	}

	filtered := resumen.View(result.Operations,
		q.Get("filtro"),
		parseSortKey(q.Get("orden")),
		q.Get("dir") == "asc")

	showAll := q.Get("todos") == "true" || q.Get("todos") == "1"

	writeJSON(w, http.StatusOK, summaryResponse{
		Source:     result.Source,
		Summary:    result.Summary,
		Operations: resumen.DisplaySlice(filtered, showAll),
		Total:      len(filtered),
		Notice:     result.Notice,
	})
}

func (s *Server) handleRefreshCartera(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Force bool `json:"forzar"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "cuerpo de solicitud no válido")
			return
		}
	}

	clients, err := s.cache.Refresh(r.Context(), req.Force)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Portfolio refresh error", "error", err, "forced", req.Force)
		writeError(w, http.StatusBadGateway, "no se pudo actualizar la cartera")
		return
	}

	resp := struct {
		Clients     int    `json:"clientes"`
		LastUpdated string `json:"ultima_actualizacion,omitempty"`
	}{Clients: len(clients)}
	if at, ok := s.cache.LastUpdate(); ok {
		resp.LastUpdated = core.FormatTimestamp(at)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidateCredit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	credit := strings.TrimSpace(r.URL.Query().Get("credito"))
	if credit == "" {
		writeError(w, http.StatusBadRequest, "parámetro 'credito' requerido")
		return
	}

	writeJSON(w, http.StatusOK, s.cache.ValidateCreditID(credit))
}

// paymentRequest is the capture payload sent by the mobile client.
type paymentRequest struct {
	CreditID   string   `json:"cdgns"`
	Cycle      string   `json:"ciclo"`
	TypeCode   string   `json:"tipo"`
	Amount     string   `json:"monto"`
	ClientName string   `json:"nombre"`
	Comments   string   `json:"comentarios_ejecutivo"`
	Latitude   *float64 `json:"latitud"`
	Longitude  *float64 `json:"longitud"`
	CapturedAt string   `json:"fregistro"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de solicitud no válido")
		return
	}

	payment := core.PendingPayment{
		CreditID:   strings.TrimSpace(req.CreditID),
		Cycle:      strings.TrimSpace(req.Cycle),
		TypeCode:   strings.TrimSpace(req.TypeCode),
		Amount:     core.ParseAmount(req.Amount),
		ClientName: sanitizeInput(req.ClientName),
		Comments:   sanitizeInput(req.Comments),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	}
	if req.CapturedAt != "" {
		at, err := core.ParseTimestamp(req.CapturedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "fecha de registro no válida")
			return
		}
		payment.CapturedAt = at
	}

	id, err := s.payments.CapturePayment(r.Context(), payment)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidCreditID),
			errors.Is(err, core.ErrEmptyClientName),
			errors.Is(err, core.ErrInvalidAmount):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Payment capture error", "error", err, "credit_id", payment.CreditID)
			writeError(w, http.StatusInternalServerError, "error registrando el pago")
		}
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		ID int64 `json:"id"`
	}{ID: id})
}

func (s *Server) handlePaymentTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.URL.Query().Get("actualizar") == "true" {
		types, fromRemote := s.types.Refresh(r.Context())
		writeJSON(w, http.StatusOK, struct {
			Types      []core.PaymentType `json:"tipos_pago"`
			FromRemote bool               `json:"desde_servidor"`
		}{Types: types, FromRemote: fromRemote})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Types []core.PaymentType `json:"tipos_pago"`
	}{Types: s.types.LocalTypes(r.Context())})
}

// parseRange builds the summary query window. Both bounds must be given
// together; with neither present the default window is used.
func parseRange(inicio, fin string) (core.DateRange, error) {
	inicio = strings.TrimSpace(inicio)
	fin = strings.TrimSpace(fin)

	if inicio == "" && fin == "" {
		return core.DefaultRange(time.Now()), nil
	}
	if inicio == "" || fin == "" {
		return core.DateRange{}, errors.New("los parámetros 'inicio' y 'fin' deben enviarse juntos")
	}

	start, err := core.ParseWireDate(inicio)
	if err != nil {
		return core.DateRange{}, errors.New("parámetro 'inicio' no válido, formato esperado AAAA-MM-DD")
	}
	end, err := core.ParseWireDate(fin)
	if err != nil {
		return core.DateRange{}, errors.New("parámetro 'fin' no válido, formato esperado AAAA-MM-DD")
	}
	return core.NewDateRange(start, end), nil
}

func parseSortKey(s string) core.SortKey {
	switch core.SortKey(s) {
	case core.SortByName:
		return core.SortByName
	case core.SortByCredit:
		return core.SortByCredit
	default:
		return core.SortByDate
	}
}
