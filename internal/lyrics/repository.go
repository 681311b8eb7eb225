package lyrics

import (
	"context"

	"github.com/bissquit/songline/internal/domain"
)

// AlignmentProvider loads word-level alignment for a track version.
type AlignmentProvider interface {
	// GetAlignment returns ErrTrackNotFound when the version is unknown.
	// A known version without alignment comes back with no words.
	GetAlignment(ctx context.Context, trackID, versionID string) (*domain.TrackAlignment, error)
}

// SectionCache stores computed sections keyed by track, version and
// alignment fingerprint.
type SectionCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (sections []domain.DetectedSection, ok bool, err error)
	Set(ctx context.Context, key string, sections []domain.DetectedSection) error
}

// AlignmentStore is an AlignmentProvider that also accepts new alignments.
type AlignmentStore interface {
	AlignmentProvider
	SaveAlignment(ctx context.Context, alignment *domain.TrackAlignment) error
}
