package lyrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bissquit/songline/internal/domain"
)

// Service resolves section lists for stored track versions.
type Service struct {
	store      AlignmentStore
	cache      SectionCache
	segmenter  *Segmenter
	windowSize int
}

// NewService creates a lyrics service. cache may be nil.
func NewService(store AlignmentStore, cache SectionCache, segmenter *Segmenter) *Service {
	return &Service{
		store:      store,
		cache:      cache,
		segmenter:  segmenter,
		windowSize: DefaultWindowSize,
	}
}

// WithWindowSize sets how many sections Position surfaces around the
// active one. Non-positive values are ignored.
func (s *Service) WithWindowSize(n int) *Service {
	if n > 0 {
		s.windowSize = n
	}
	return s
}

// Segment computes sections for ad-hoc words. Words are sorted by start
// time first; the input slice is not modified.
func (s *Service) Segment(words []domain.AlignedWord, duration float64) []domain.DetectedSection {
	sorted := make([]domain.AlignedWord, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartSeconds < sorted[j].StartSeconds
	})

	var sections []domain.DetectedSection
	if len(sorted) == 0 {
		sections = CreateMusicalSections(duration)
	} else {
		sections = s.segmenter.DetectSectionsFromGaps(sorted, duration)
	}
	recordSegmentation(sectionSource(sections))
	return sections
}

// Sections returns the section list of a track version, using the cache
// when the alignment has not changed since it was computed.
func (s *Service) Sections(ctx context.Context, trackID, versionID string) ([]domain.DetectedSection, error) {
	alignment, err := s.store.GetAlignment(ctx, trackID, versionID)
	if err != nil {
		return nil, err
	}

	key := cacheKey(alignment)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("section cache lookup failed", "key", key, "error", err)
			recordCacheLookup("error")
		case ok:
			recordCacheLookup("hit")
			return cached, nil
		default:
			recordCacheLookup("miss")
		}
	}

	sections := s.Segment(alignment.Words, alignment.DurationSeconds)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, sections); err != nil {
			slog.Warn("section cache store failed", "key", key, "error", err)
		}
	}

	slog.Debug("sections computed",
		"track_id", trackID,
		"version_id", versionID,
		"sections", len(sections),
		"words", len(alignment.Words),
	)

	return sections, nil
}

// SaveAlignment stores a new alignment for a track version. Sections are
// recomputed on next read because the cache key includes updated_at.
func (s *Service) SaveAlignment(ctx context.Context, alignment *domain.TrackAlignment) error {
	if err := CheckDuration(alignment.Words, alignment.DurationSeconds); err != nil {
		return err
	}
	sort.SliceStable(alignment.Words, func(i, j int) bool {
		return alignment.Words[i].StartSeconds < alignment.Words[j].StartSeconds
	})
	if err := s.store.SaveAlignment(ctx, alignment); err != nil {
		return fmt.Errorf("save alignment: %w", err)
	}
	slog.Info("alignment saved",
		"track_id", alignment.TrackID,
		"version_id", alignment.VersionID,
		"words", len(alignment.Words),
	)
	return nil
}

// Position returns the playback position within a track version.
func (s *Service) Position(ctx context.Context, trackID, versionID string, currentTime float64, playing bool) (Position, error) {
	sections, err := s.Sections(ctx, trackID, versionID)
	if err != nil {
		return Position{}, fmt.Errorf("load sections: %w", err)
	}
	active := FindActiveSection(sections, currentTime)
	return Locate(sections, active, currentTime, playing, s.windowSize), nil
}

// CheckDuration reports ErrWordsExceedDuration when any word ends after
// duration.
func CheckDuration(words []domain.AlignedWord, duration float64) error {
	if end := lastWordEnd(words); end > duration {
		return fmt.Errorf("%w: last word ends at %.2fs, duration is %.2fs", ErrWordsExceedDuration, end, duration)
	}
	return nil
}

func cacheKey(a *domain.TrackAlignment) string {
	return fmt.Sprintf("%s:%s:%d", a.TrackID, a.VersionID, a.UpdatedAt.UnixNano())
}

func sectionSource(sections []domain.DetectedSection) string {
	switch {
	case len(sections) == 0:
		return "empty"
	case len(sections[0].Words) == 0:
		return "duration"
	default:
		return "alignment"
	}
}
