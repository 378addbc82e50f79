package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// InsertPayment inserts a captured payment
func (db *DB) InsertPayment(ctx context.Context, tx *sql.Tx, p Payment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, status, gross_amount, platform_fee_amount, net_amount, payment_method, installments, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Status, p.GrossAmount, p.PlatformFeeAmount, p.NetAmount, p.PaymentMethod, p.Installments, p.IdempotencyKey, p.CreatedAt)
	return err
}

// InsertLedgerEntries inserts all ledger rows for a payment in one statement
func (db *DB) InsertLedgerEntries(ctx context.Context, tx *sql.Tx, entries []LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*6)
	for i, e := range entries {
		base := i * 6
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, e.ID, e.PaymentID, e.RecipientID, e.Role, e.Amount, e.CreatedAt)
	}

	query := `
		INSERT INTO ledger_entries (id, payment_id, recipient_id, role, amount, created_at)
		VALUES ` + strings.Join(placeholders, ", ")
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetPaymentByID returns a payment row by its UUID
func (db *DB) GetPaymentByID(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	err := db.QueryRowContext(ctx, `
		SELECT id, status, gross_amount, platform_fee_amount, net_amount, payment_method, installments, idempotency_key, created_at
		FROM payments
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Status, &p.GrossAmount, &p.PlatformFeeAmount, &p.NetAmount,
		&p.PaymentMethod, &p.Installments, &p.IdempotencyKey, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPaymentByIdempotencyKey returns the payment captured under a key
func (db *DB) GetPaymentByIdempotencyKey(ctx context.Context, key string) (*Payment, error) {
	var p Payment
	err := db.QueryRowContext(ctx, `
		SELECT id, status, gross_amount, platform_fee_amount, net_amount, payment_method, installments, idempotency_key, created_at
		FROM payments
		WHERE idempotency_key = $1
	`, key).Scan(&p.ID, &p.Status, &p.GrossAmount, &p.PlatformFeeAmount, &p.NetAmount,
		&p.PaymentMethod, &p.Installments, &p.IdempotencyKey, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPayments returns a page of payments ordered newest first, plus the
// total row count for pagination
func (db *DB) ListPayments(ctx context.Context, limit, offset int) ([]Payment, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, status, gross_amount, platform_fee_amount, net_amount, payment_method, installments, idempotency_key, created_at
		FROM payments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := make([]Payment, 0, limit)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Status, &p.GrossAmount, &p.PlatformFeeAmount, &p.NetAmount,
			&p.PaymentMethod, &p.Installments, &p.IdempotencyKey, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}

	return payments, total, rows.Err()
}

// GetLedgerEntries returns the ledger rows of one payment in insertion order
func (db *DB) GetLedgerEntries(ctx context.Context, paymentID string) ([]LedgerEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, payment_id, recipient_id, role, amount, created_at
		FROM ledger_entries
		WHERE payment_id = $1
		ORDER BY created_at, id
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.PaymentID, &e.RecipientID, &e.Role, &e.Amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetCaptureStats aggregates capture totals for the stats endpoint
func (db *DB) GetCaptureStats(ctx context.Context) (*CaptureStats, error) {
	var stats CaptureStats
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(gross_amount), 0),
			COALESCE(SUM(platform_fee_amount), 0),
			COALESCE(SUM(net_amount), 0)
		FROM payments
	`).Scan(&stats.TotalPayments, &stats.TotalGrossAmount, &stats.TotalPlatformFees, &stats.TotalNetAmount)
	if err != nil {
		return nil, err
	}

	stats.PaymentsByMethod = make(map[string]int64)
	rows, err := db.QueryContext(ctx, "SELECT payment_method, COUNT(*) FROM payments GROUP BY payment_method")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var method string
		var count int64
		if err := rows.Scan(&method, &count); err != nil {
			return nil, err
		}
		stats.PaymentsByMethod[method] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outbox_events WHERE status = $1", OutboxStatusPending,
	).Scan(&stats.PendingOutboxEvents)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
