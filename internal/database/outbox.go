package database

import (
	"context"
	"database/sql"
)

// InsertOutboxEvent stages a domain event in the same transaction as the
// business change it describes
func (db *DB) InsertOutboxEvent(ctx context.Context, tx *sql.Tx, event OutboxEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, event.ID, event.EventType, []byte(event.Payload), event.Status, event.CreatedAt)
	return err
}

// GetOutboxEventByID returns a single outbox event
func (db *DB) GetOutboxEventByID(ctx context.Context, id string) (*OutboxEvent, error) {
	var e OutboxEvent
	err := db.QueryRowContext(ctx, `
		SELECT id, event_type, payload, status, created_at, published_at
		FROM outbox_events
		WHERE id = $1
	`, id).Scan(&e.ID, &e.EventType, &e.Payload, &e.Status, &e.CreatedAt, &e.PublishedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListOutboxEvents returns a page of outbox events oldest first, optionally
// filtered by status, plus the total row count
func (db *DB) ListOutboxEvents(ctx context.Context, status string, limit, offset int) ([]OutboxEvent, int, error) {
	var total int
	var rows *sql.Rows
	var err error

	if status != "" {
		if err = db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM outbox_events WHERE status = $1", status,
		).Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = db.QueryContext(ctx, `
			SELECT id, event_type, payload, status, created_at, published_at
			FROM outbox_events
			WHERE status = $1
			ORDER BY created_at
			LIMIT $2 OFFSET $3
		`, status, limit, offset)
	} else {
		if err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox_events").Scan(&total); err != nil {
			return nil, 0, err
		}
		rows, err = db.QueryContext(ctx, `
			SELECT id, event_type, payload, status, created_at, published_at
			FROM outbox_events
			ORDER BY created_at
			LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]OutboxEvent, 0, limit)
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Status, &e.CreatedAt, &e.PublishedAt); err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}

	return events, total, rows.Err()
}
