package database

import (
	"context"
	"database/sql"
)

// GetIdempotencyRecordForUpdate loads the record for a key and row-locks it
// for the rest of the transaction. Returns nil when no record exists; the
// caller then races to insert one.
func (db *DB) GetIdempotencyRecordForUpdate(ctx context.Context, tx *sql.Tx, key string) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	err := tx.QueryRowContext(ctx, `
		SELECT id, key, payload_hash, status, response_data, created_at
		FROM idempotency_records
		WHERE key = $1
		FOR UPDATE
	`, key).Scan(&rec.ID, &rec.Key, &rec.PayloadHash, &rec.Status, &rec.ResponseData, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertIdempotencyRecord claims a key. A concurrent claim surfaces as a
// unique violation, which callers detect with IsUniqueViolation.
func (db *DB) InsertIdempotencyRecord(ctx context.Context, tx *sql.Tx, rec IdempotencyRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency_records (id, key, payload_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.Key, rec.PayloadHash, rec.Status, rec.CreatedAt)
	return err
}

// CompleteIdempotencyRecord stores the response body and flips the record to
// completed, all inside the capture transaction
func (db *DB) CompleteIdempotencyRecord(ctx context.Context, tx *sql.Tx, key string, responseData []byte) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE idempotency_records
		SET status = $1, response_data = $2
		WHERE key = $3
	`, IdempotencyStatusCompleted, responseData, key)
	return err
}
