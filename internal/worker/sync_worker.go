// Package worker pushes payments captured offline to the backend. Messages
// from the API process trigger an immediate push; a periodic sweep retries
// anything the broker lost, and a cleanup pass removes confirmed rows.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cobranza/internal/amqp"
	"cobranza/internal/backend"
	"cobranza/internal/core"
)

// SyncLedger is the slice of storage the worker drives.
type SyncLedger interface {
	GetPendingPayment(ctx context.Context, id int64) (core.PendingPayment, error)
	ListUnsyncedBatch(ctx context.Context, limit, maxAttempts int) ([]core.PendingPayment, error)
	MarkSynced(ctx context.Context, id int64, at time.Time) error
	RecordSyncAttempt(ctx context.Context, id int64) error
	DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds the worker's sweep parameters.
type Config struct {
	// BatchSize is the max payments pushed per sweep.
	BatchSize int
	// MaxRetries caps attempts per payment before the sweep skips it.
	MaxRetries int
	// CleanupAge is how old a confirmed row must be before removal.
	CleanupAge time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		MaxRetries: 3,
		CleanupAge: 24 * time.Hour,
	}
}

type SyncWorker struct {
	ledger SyncLedger
	sender backend.PaymentSender
	config Config
	now    func() time.Time
}

func NewSyncWorker(ledger SyncLedger, sender backend.PaymentSender, config Config) *SyncWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}
	if config.CleanupAge <= 0 {
		config.CleanupAge = DefaultConfig().CleanupAge
	}
	return &SyncWorker{
		ledger: ledger,
		sender: sender,
		config: config,
		now:    time.Now,
	}
}

// HandleSyncMessage processes a single payment sync message from AMQP.
// Returning an error nacks the message for redelivery.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.PaymentSyncMessage) error {
	slog.InfoContext(ctx, "Processing payment sync message", "id", msg.ID)

	payment, err := w.ledger.GetPendingPayment(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get pending payment %d: %w", msg.ID, err)
	}

	return w.push(ctx, payment)
}

// ProcessPendingPayments sweeps the ledger for unsynced payments that have
// attempts left, pushing them oldest first. Individual failures bump the
// retry counter and the sweep continues.
func (w *SyncWorker) ProcessPendingPayments(ctx context.Context) error {
	batch, err := w.ledger.ListUnsyncedBatch(ctx, w.config.BatchSize, w.config.MaxRetries)
	if err != nil {
		return fmt.Errorf("list unsynced payments: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping unsynced payments", "count", len(batch))

	for _, payment := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.push(ctx, payment); err != nil {
			slog.ErrorContext(ctx, "Failed to push payment",
				"id", payment.ID,
				"credit_id", payment.CreditID,
				"error", err)
		}
	}
	return nil
}

// CleanupSynced deletes confirmed rows older than the cleanup age.
func (w *SyncWorker) CleanupSynced(ctx context.Context) error {
	cutoff := w.now().Add(-w.config.CleanupAge)
	n, err := w.ledger.DeleteSyncedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup synced payments: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up synced payments", "count", n)
	}
	return nil
}

func (w *SyncWorker) push(ctx context.Context, payment core.PendingPayment) error {
	if err := w.sender.SendPayment(ctx, payment); err != nil {
		if recordErr := w.ledger.RecordSyncAttempt(ctx, payment.ID); recordErr != nil {
			slog.WarnContext(ctx, "Failed to record sync attempt",
				"id", payment.ID, "error", recordErr)
		}
		return fmt.Errorf("send payment %d: %w", payment.ID, err)
	}

	if err := w.ledger.MarkSynced(ctx, payment.ID, w.now()); err != nil {
		// The backend accepted the payment; a failed mark means the sweep
		// may push it again, which the backend must deduplicate. Log loudly.
		slog.ErrorContext(ctx, "Payment sent but not marked synced",
			"id", payment.ID, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Payment synced",
		"id", payment.ID,
		"credit_id", payment.CreditID,
		"amount", payment.Amount.String())
	return nil
}
