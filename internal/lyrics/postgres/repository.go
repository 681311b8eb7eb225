// Package postgres provides PostgreSQL implementation of the lyrics alignment store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bissquit/songline/internal/domain"
	"github.com/bissquit/songline/internal/lyrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements lyrics.AlignmentProvider using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetAlignment retrieves the alignment of a track version.
func (r *Repository) GetAlignment(ctx context.Context, trackID, versionID string) (*domain.TrackAlignment, error) {
	query := `
		SELECT track_id, version_id, duration_seconds, words, updated_at
		FROM track_alignments
		WHERE track_id = $1 AND version_id = $2
	`
	var (
		a        domain.TrackAlignment
		rawWords []byte
	)
	err := r.db.QueryRow(ctx, query, trackID, versionID).Scan(
		&a.TrackID,
		&a.VersionID,
		&a.DurationSeconds,
		&rawWords,
		&a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, lyrics.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alignment: %w", err)
	}

	if len(rawWords) > 0 {
		if err := json.Unmarshal(rawWords, &a.Words); err != nil {
			return nil, fmt.Errorf("decode alignment words: %w", err)
		}
	}

	return &a, nil
}

// SaveAlignment inserts or replaces the alignment of a track version.
// updated_at moves forward so cached sections are recomputed.
func (r *Repository) SaveAlignment(ctx context.Context, a *domain.TrackAlignment) error {
	words := a.Words
	if words == nil {
		words = []domain.AlignedWord{}
	}
	rawWords, err := json.Marshal(words)
	if err != nil {
		return fmt.Errorf("encode alignment words: %w", err)
	}

	query := `
		INSERT INTO track_alignments (track_id, version_id, duration_seconds, words)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (track_id, version_id) DO UPDATE
		SET duration_seconds = EXCLUDED.duration_seconds,
		    words = EXCLUDED.words,
		    updated_at = NOW()
		RETURNING updated_at
	`
	if err := r.db.QueryRow(ctx, query, a.TrackID, a.VersionID, a.DurationSeconds, rawWords).Scan(&a.UpdatedAt); err != nil {
		return fmt.Errorf("save alignment: %w", err)
	}
	return nil
}
