// Package services orchestrates payment capture across the local ledger and
// the sync queue. The ledger write always comes first: a payment captured in
// the field must survive even when the broker or the backend is down.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cobranza/internal/core"
)

// PendingLedger is the slice of storage the capture path needs.
type PendingLedger interface {
	AddPendingPayment(ctx context.Context, p core.PendingPayment) (int64, error)
}

// SyncPublisher notifies the worker that a ledger entry is ready to push.
type SyncPublisher interface {
	PublishPaymentSync(ctx context.Context, id int64) error
}

// CreditValidator checks a credit id against the portfolio roster.
type CreditValidator interface {
	ValidateCreditID(id string) (valid bool, message string)
}

type PaymentService struct {
	ledger    PendingLedger
	publisher SyncPublisher
	validator CreditValidator
	now       func() time.Time
}

func NewPaymentService(ledger PendingLedger, publisher SyncPublisher, validator CreditValidator) *PaymentService {
	return &PaymentService{
		ledger:    ledger,
		publisher: publisher,
		validator: validator,
		now:       time.Now,
	}
}

// CapturePayment validates and stores a payment, then publishes a sync
// message. Publish failure is logged and absorbed: the payment is durable
// locally and the worker's periodic sweep will pick it up.
func (s *PaymentService) CapturePayment(ctx context.Context, p core.PendingPayment) (int64, error) {
	if p.CapturedAt.IsZero() {
		p.CapturedAt = s.now()
	}
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("validate payment: %w", err)
	}
	if s.validator != nil {
		if ok, message := s.validator.ValidateCreditID(p.CreditID); !ok {
			return 0, fmt.Errorf("%w: %s", core.ErrInvalidCreditID, message)
		}
	}

	id, err := s.ledger.AddPendingPayment(ctx, p)
	if err != nil {
		return 0, fmt.Errorf("save payment: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishPaymentSync(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish payment sync message",
				"id", id, "error", err)
			// Don't fail the capture - the payment is saved locally.
		}
	} else {
		slog.WarnContext(ctx, "Sync publisher not available, payment queued locally", "id", id)
	}

	return id, nil
}
