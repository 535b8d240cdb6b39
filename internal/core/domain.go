package core

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidRange    = errors.New("invalid date range: start is after end")
	ErrInvalidCreditID = errors.New("invalid credit id")
	ErrEmptyClientName = errors.New("empty client name")
	ErrInvalidSequence = errors.New("sequence must be 0 exactly when the operation is pending")
)

type (
	// SortKey selects the comparison used by the operation view pipeline.
	SortKey string

	// ClientRecord is one credit in the executive's portfolio roster.
	ClientRecord struct {
		CreditID string `json:"cdgns"`
		Cycle    string `json:"ciclo"`
		Name     string `json:"nombre"`
	}

	// Operation is one payment or portfolio event shown to the officer.
	// Synced operations carry a server-assigned sequence number; pending
	// operations were captured offline and always have Sequence == 0.
	Operation struct {
		CreditID     string   `json:"cdgns"`
		Cycle        string   `json:"ciclo"`
		RegisteredAt string   `json:"fregistro"`
		BusinessDate string   `json:"fecha"`
		Amount       Amount   `json:"monto"`
		TypeLabel    string   `json:"tipo"`
		ClientName   string   `json:"nombre"`
		Comments     string   `json:"comentarios_ejecutivo,omitempty"`
		Sequence     int64    `json:"secuencia"`
		Latitude     *float64 `json:"latitud,omitempty"`
		Longitude    *float64 `json:"longitud,omitempty"`
		Pending      bool     `json:"es_pendiente"`
	}

	// DailySummary aggregates total count and amount over a date range.
	// It is replaced wholesale on every fetch or fallback computation.
	DailySummary struct {
		RangeLabel      string `json:"rango_fechas"`
		TotalOperations int64  `json:"total_operaciones"`
		TotalAmount     Amount `json:"monto_total"`
	}

	// PaymentType maps a payment-type code to its display description.
	PaymentType struct {
		Code        string `json:"codigo"`
		Description string `json:"descripcion"`
	}

	// PendingPayment is a payment captured while offline, stored in the
	// local ledger and not yet confirmed by the server.
	PendingPayment struct {
		ID         int64
		CreditID   string
		Cycle      string
		TypeCode   string
		Amount     Amount
		ClientName string
		Comments   string
		Latitude   *float64
		Longitude  *float64
		CapturedAt time.Time
	}
)

const (
	SortByDate   SortKey = "fecha"
	SortByName   SortKey = "nombre"
	SortByCredit SortKey = "credito"
)

// SyncedOperation builds an operation confirmed by the server. The sequence
// is the server-assigned ordinal and must be positive.
func SyncedOperation(op Operation, sequence int64) (Operation, error) {
	if sequence <= 0 {
		return Operation{}, ErrInvalidSequence
	}
	op.Sequence = sequence
	op.Pending = false
	return op, nil
}

// PendingOperation promotes a ledger entry into an operation for display.
// Pending operations never carry a server ordinal.
func PendingOperation(p PendingPayment, typeLabel string) Operation {
	return Operation{
		CreditID:     p.CreditID,
		Cycle:        p.Cycle,
		RegisteredAt: FormatTimestamp(p.CapturedAt),
		BusinessDate: FormatDisplayDate(p.CapturedAt),
		Amount:       p.Amount,
		TypeLabel:    typeLabel,
		ClientName:   p.ClientName,
		Comments:     p.Comments,
		Sequence:     0,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Pending:      true,
	}
}

// Validate checks the pending/sequence coupling.
func (o Operation) Validate() error {
	if o.Pending != (o.Sequence == 0) {
		return ErrInvalidSequence
	}
	return nil
}

// RegisteredTime parses the registration timestamp for sorting. The zero
// time is returned for unparseable values so they sort last in the default
// descending order.
func (o Operation) RegisteredTime() time.Time {
	t, err := ParseTimestamp(o.RegisteredAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p PendingPayment) Validate() error {
	if len(p.CreditID) != CreditIDLen || !allDigits(p.CreditID) {
		return ErrInvalidCreditID
	}
	if strings.TrimSpace(p.ClientName) == "" {
		return ErrEmptyClientName
	}
	if !p.Amount.Numeric() {
		return ErrInvalidAmount
	}
	return nil
}

// CreditIDLen is the fixed width of a credit identifier.
const CreditIDLen = 6

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
