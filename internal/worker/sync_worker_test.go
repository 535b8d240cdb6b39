package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"cobranza/internal/amqp"
	"cobranza/internal/backend/memory"
	"cobranza/internal/core"
)

type fakeLedger struct {
	payments map[int64]core.PendingPayment
	synced   map[int64]time.Time
	attempts map[int64]int
	deleted  int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		payments: make(map[int64]core.PendingPayment),
		synced:   make(map[int64]time.Time),
		attempts: make(map[int64]int),
	}
}

func (l *fakeLedger) add(id int64, credit string) {
	l.payments[id] = core.PendingPayment{
		ID:         id,
		CreditID:   credit,
		TypeCode:   "P",
		Amount:     core.ParseAmount("100"),
		ClientName: "Ana García",
		CapturedAt: time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute),
	}
}

func (l *fakeLedger) GetPendingPayment(ctx context.Context, id int64) (core.PendingPayment, error) {
	p, ok := l.payments[id]
	if !ok {
		return core.PendingPayment{}, errors.New("not found")
	}
	return p, nil
}

func (l *fakeLedger) ListUnsyncedBatch(ctx context.Context, limit, maxAttempts int) ([]core.PendingPayment, error) {
	var out []core.PendingPayment
	for id, p := range l.payments {
		if _, done := l.synced[id]; done {
			continue
		}
		if l.attempts[id] >= maxAttempts {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *fakeLedger) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	l.synced[id] = at
	return nil
}

func (l *fakeLedger) RecordSyncAttempt(ctx context.Context, id int64) error {
	l.attempts[id]++
	return nil
}

func (l *fakeLedger) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	for id, at := range l.synced {
		if at.Before(cutoff) {
			delete(l.synced, id)
			delete(l.payments, id)
			l.deleted++
		}
	}
	return l.deleted, nil
}

func TestHandleSyncMessagePushesAndMarks(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add(7, "123456")
	gw := memory.New()
	w := NewSyncWorker(ledger, gw, DefaultConfig())

	err := w.HandleSyncMessage(context.Background(), &amqp.PaymentSyncMessage{ID: 7})
	if err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}
	if len(gw.SentPayments) != 1 || gw.SentPayments[0].CreditID != "123456" {
		t.Errorf("sent = %+v", gw.SentPayments)
	}
	if _, ok := ledger.synced[7]; !ok {
		t.Error("payment not marked synced")
	}
}

func TestHandleSyncMessageRecordsAttemptOnFailure(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add(7, "123456")
	gw := memory.New()
	gw.FailPayment = true
	w := NewSyncWorker(ledger, gw, DefaultConfig())

	err := w.HandleSyncMessage(context.Background(), &amqp.PaymentSyncMessage{ID: 7})
	if err == nil {
		t.Fatal("expected push failure")
	}
	if ledger.attempts[7] != 1 {
		t.Errorf("attempts = %d, want 1", ledger.attempts[7])
	}
	if _, ok := ledger.synced[7]; ok {
		t.Error("failed payment marked synced")
	}
}

func TestProcessPendingPaymentsContinuesPastFailures(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add(1, "111111")
	ledger.add(2, "222222")
	gw := memory.New()
	w := NewSyncWorker(ledger, gw, Config{BatchSize: 10, MaxRetries: 3, CleanupAge: time.Hour})

	if err := w.ProcessPendingPayments(context.Background()); err != nil {
		t.Fatalf("ProcessPendingPayments: %v", err)
	}
	if len(ledger.synced) != 2 {
		t.Errorf("synced = %d payments, want 2", len(ledger.synced))
	}

	// A second sweep finds nothing left to push.
	sent := len(gw.SentPayments)
	if err := w.ProcessPendingPayments(context.Background()); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(gw.SentPayments) != sent {
		t.Error("second sweep re-pushed synced payments")
	}
}

func TestCleanupSynced(t *testing.T) {
	ledger := newFakeLedger()
	ledger.add(1, "111111")
	w := NewSyncWorker(ledger, memory.New(), Config{BatchSize: 10, MaxRetries: 3, CleanupAge: time.Hour})

	old := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	ledger.synced[1] = old
	w.now = func() time.Time { return old.Add(48 * time.Hour) }

	if err := w.CleanupSynced(context.Background()); err != nil {
		t.Fatalf("CleanupSynced: %v", err)
	}
	if ledger.deleted != 1 {
		t.Errorf("deleted = %d, want 1", ledger.deleted)
	}
}
