package lyrics

import "github.com/bissquit/songline/internal/domain"

const (
	// SectionGrace keeps a section active shortly after its end so the
	// highlight does not drop out between sections.
	SectionGrace = 0.5
	// DefaultWindowSize is the number of sections surfaced around the active one.
	DefaultWindowSize = 4
)

// FindActiveSection returns the index of the first section containing t,
// allowing SectionGrace past its end, or -1.
func FindActiveSection(sections []domain.DetectedSection, t float64) int {
	for i, s := range sections {
		if t >= s.StartTime && t <= s.EndTime+SectionGrace {
			return i
		}
	}
	return -1
}

// IsWordActive reports whether playback is running and t lies within the word.
func IsWordActive(w domain.AlignedWord, t float64, playing bool) bool {
	return playing && t >= w.StartSeconds && t <= w.EndSeconds
}

// FindActiveWord returns the index of the active word in words, or -1.
func FindActiveWord(words []domain.AlignedWord, t float64, playing bool) int {
	for i, w := range words {
		if IsWordActive(w, t, playing) {
			return i
		}
	}
	return -1
}

// VisibleWindow returns the [start, end) range of sections to display
// around the active index.
func VisibleWindow(active, total, size int) (start, end int) {
	if size <= 0 {
		size = DefaultWindowSize
	}
	start = max(0, active-1)
	end = min(total, start+size)
	if start > end {
		start = end
	}
	return start, end
}

// Position is the playback state derived from a time update.
type Position struct {
	Section     int `json:"section"`
	Word        int `json:"word"`
	Total       int `json:"total"`
	WindowStart int `json:"window_start"`
	WindowEnd   int `json:"window_end"`
}

// Tracker follows playback over a fixed section list. It is driven by the
// caller's time updates and holds no timers. Not safe for concurrent use.
type Tracker struct {
	sections   []domain.DetectedSection
	windowSize int
	active     int
}

// NewTracker creates a tracker with no active section.
func NewTracker(sections []domain.DetectedSection, windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Tracker{
		sections:   sections,
		windowSize: windowSize,
		active:     -1,
	}
}

// Active returns the last computed active section index.
func (t *Tracker) Active() int {
	return t.active
}

// Update recomputes the position for currentTime. changed is true only when
// the active section differs from the previous update, so callers can skip
// redundant redraws. Arbitrary seeks are fine.
func (t *Tracker) Update(currentTime float64, playing bool) (pos Position, changed bool) {
	idx := FindActiveSection(t.sections, currentTime)
	if idx != t.active {
		t.active = idx
		changed = true
	}
	return Locate(t.sections, idx, currentTime, playing, t.windowSize), changed
}

// Locate builds a Position for a known active section index.
func Locate(sections []domain.DetectedSection, active int, currentTime float64, playing bool, windowSize int) Position {
	pos := Position{Section: active, Word: -1, Total: len(sections)}
	if active >= 0 && active < len(sections) {
		pos.Word = FindActiveWord(sections[active].Words, currentTime, playing)
	}
	pos.WindowStart, pos.WindowEnd = VisibleWindow(active, len(sections), windowSize)
	return pos
}
