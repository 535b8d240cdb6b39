// Package storage is the durable side of the application: the ledger of
// payments captured offline and a small key/value store for catalog and
// session blobs. Both live in one SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cobranza/internal/core"

	_ "modernc.org/sqlite"
)

// storedTimeLayout is how timestamps are persisted. SQLite has no native
// time type; a fixed text layout keeps ordering and round-trips exact.
const storedTimeLayout = "2006-01-02 15:04:05"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddPendingPayment stores a captured payment and returns its ledger id.
func (r *SQLiteRepository) AddPendingPayment(ctx context.Context, p core.PendingPayment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_payments
			(credit_id, cycle, payment_type, amount, client_name, comments,
			 latitude, longitude, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CreditID, p.Cycle, p.TypeCode, p.Amount.String(), p.ClientName, p.Comments,
		nullFloat(p.Latitude), nullFloat(p.Longitude), p.CapturedAt.Format(storedTimeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert pending payment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read pending payment id: %w", err)
	}

	slog.InfoContext(ctx, "Pending payment saved",
		"id", id,
		"credit_id", p.CreditID,
		"amount", p.Amount.String())

	return id, nil
}

// GetPendingPayment loads a single ledger entry by id.
func (r *SQLiteRepository) GetPendingPayment(ctx context.Context, id int64) (core.PendingPayment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, credit_id, cycle, payment_type, amount, client_name,
		       comments, latitude, longitude, captured_at
		FROM pending_payments
		WHERE id = ?`, id)

	p, err := scanPendingPayment(row)
	if err != nil {
		return core.PendingPayment{}, fmt.Errorf("get pending payment %d: %w", id, err)
	}
	return p, nil
}

// ListPendingPayments returns every unsynced payment, newest capture first.
// This ordering is what puts pending items at the head of a fallback merge.
func (r *SQLiteRepository) ListPendingPayments(ctx context.Context) ([]core.PendingPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, credit_id, cycle, payment_type, amount, client_name,
		       comments, latitude, longitude, captured_at
		FROM pending_payments
		WHERE synced_at IS NULL
		ORDER BY captured_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	return collectPendingPayments(rows)
}

// ListUnsyncedBatch returns up to limit unsynced payments that have not
// exhausted their retry budget, oldest capture first so the backlog drains
// in order.
func (r *SQLiteRepository) ListUnsyncedBatch(ctx context.Context, limit, maxAttempts int) ([]core.PendingPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, credit_id, cycle, payment_type, amount, client_name,
		       comments, latitude, longitude, captured_at
		FROM pending_payments
		WHERE synced_at IS NULL AND sync_attempts < ?
		ORDER BY captured_at ASC, id ASC
		LIMIT ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced batch: %w", err)
	}
	defer rows.Close()

	return collectPendingPayments(rows)
}

// MarkSynced records that the backend confirmed the payment.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE pending_payments
		SET synced_at = ?
		WHERE id = ? AND synced_at IS NULL`,
		at.Format(storedTimeLayout), id)
	if err != nil {
		return fmt.Errorf("mark payment %d synced: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.WarnContext(ctx, "Payment already synced or missing", "id", id)
	}
	return nil
}

// RecordSyncAttempt bumps the retry counter after a failed push.
func (r *SQLiteRepository) RecordSyncAttempt(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE pending_payments
		SET sync_attempts = sync_attempts + 1
		WHERE id = ?`, id); err != nil {
		return fmt.Errorf("record sync attempt for %d: %w", id, err)
	}
	return nil
}

// DeleteSyncedBefore removes confirmed payments older than the cutoff and
// returns how many rows were cleaned up.
func (r *SQLiteRepository) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM pending_payments
		WHERE synced_at IS NOT NULL AND synced_at < ?`,
		cutoff.Format(storedTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("delete synced payments: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted payments: %w", err)
	}
	return n, nil
}

// GetValue reads a key/value blob. Absence is reported through ok, not an
// error.
func (r *SQLiteRepository) GetValue(ctx context.Context, key string) (value string, ok bool, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get value %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue upserts a key/value blob.
func (r *SQLiteRepository) SetValue(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value); err != nil {
		return fmt.Errorf("set value %q: %w", key, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingPayment(row rowScanner) (core.PendingPayment, error) {
	var (
		p          core.PendingPayment
		amount     string
		lat, lon   sql.NullFloat64
		capturedAt string
	)
	if err := row.Scan(&p.ID, &p.CreditID, &p.Cycle, &p.TypeCode, &amount,
		&p.ClientName, &p.Comments, &lat, &lon, &capturedAt); err != nil {
		return core.PendingPayment{}, err
	}

	p.Amount = core.ParseAmount(amount)
	if lat.Valid {
		v := lat.Float64
		p.Latitude = &v
	}
	if lon.Valid {
		v := lon.Float64
		p.Longitude = &v
	}

	t, err := time.Parse(storedTimeLayout, capturedAt)
	if err != nil {
		return core.PendingPayment{}, fmt.Errorf("parse captured_at %q: %w", capturedAt, err)
	}
	p.CapturedAt = t

	return p, nil
}

func collectPendingPayments(rows *sql.Rows) ([]core.PendingPayment, error) {
	var out []core.PendingPayment
	for rows.Next() {
		p, err := scanPendingPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending payments: %w", err)
	}
	return out, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
