// Package postgres provides PostgreSQL implementation of the dead-letter sink.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bissquit/songline/internal/notifications"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeadLetterRepository implements notifications.DeadLetterSink using PostgreSQL.
type DeadLetterRepository struct {
	db *pgxpool.Pool
}

// NewDeadLetterRepository creates a new PostgreSQL dead-letter repository.
func NewDeadLetterRepository(db *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Record stores a dead letter. Recording the same ID twice is a no-op.
func (r *DeadLetterRepository) Record(ctx context.Context, dl notifications.DeadLetter) error {
	payload, err := json.Marshal(dl.Payload)
	if err != nil {
		return fmt.Errorf("encode dead letter payload: %w", err)
	}

	query := `
		INSERT INTO notification_dead_letters
			(id, notification_id, kind, priority, channel, payload, attempts, last_error, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.Exec(ctx, query,
		dl.ID,
		dl.NotificationID,
		string(dl.Payload.Kind()),
		string(dl.Payload.Priority),
		string(dl.Payload.Recipient.Channel),
		payload,
		dl.Attempts,
		dl.LastError,
		dl.FailedAt,
	)
	if err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}
	return nil
}

// List returns up to limit dead letters, newest first.
func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]notifications.DeadLetter, error) {
	query := `
		SELECT id, notification_id, payload, attempts, last_error, failed_at
		FROM notification_dead_letters
		ORDER BY failed_at DESC, id
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var items []notifications.DeadLetter
	for rows.Next() {
		var (
			dl  notifications.DeadLetter
			raw []byte
		)
		if err := rows.Scan(&dl.ID, &dl.NotificationID, &raw, &dl.Attempts, &dl.LastError, &dl.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal(raw, &dl.Payload); err != nil {
			return nil, fmt.Errorf("decode dead letter %s: %w", dl.ID, err)
		}
		items = append(items, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}

	return items, nil
}
