package domain

import "time"

// LineBreakMarker is embedded in aligned word text to hint a line break.
const LineBreakMarker = "\n"

// AlignedWord is a transcribed word with its playback span.
type AlignedWord struct {
	Text         string  `json:"text" validate:"required"`
	StartSeconds float64 `json:"start_s" validate:"gte=0"`
	EndSeconds   float64 `json:"end_s" validate:"gtefield=StartSeconds"`
}

// SectionType is the musical role of a song section.
type SectionType string

// Section types.
const (
	SectionIntro     SectionType = "intro"
	SectionVerse     SectionType = "verse"
	SectionChorus    SectionType = "chorus"
	SectionPreChorus SectionType = "pre-chorus"
	SectionBridge    SectionType = "bridge"
	SectionOutro     SectionType = "outro"
)

// DetectedSection is a contiguous labeled span of a track.
// Words is empty for sections synthesized from duration alone.
type DetectedSection struct {
	Type      SectionType   `json:"type"`
	Label     string        `json:"label"`
	StartTime float64       `json:"start_time"`
	EndTime   float64       `json:"end_time"`
	Lyrics    string        `json:"lyrics"`
	Words     []AlignedWord `json:"words"`
}

// Duration returns the section length in seconds.
func (s DetectedSection) Duration() float64 {
	return s.EndTime - s.StartTime
}

// TrackAlignment is the word-level alignment stored for one track version.
type TrackAlignment struct {
	TrackID         string
	VersionID       string
	DurationSeconds float64
	Words           []AlignedWord
	UpdatedAt       time.Time
}
