package lyrics

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bissquit/songline/internal/domain"
)

// Segmentation constants, in seconds.
const (
	MergeThreshold     = 0.8
	MaxSectionDuration = 50.0
	// FallbackMinDuration is the track length above which a result with
	// fewer than two sections is replaced by synthesized sections.
	FallbackMinDuration = 45.0
	// minLyricsLength is the shortest section text kept; shorter ones are noise.
	minLyricsLength = 6
)

// Segmenter splits aligned words into labeled song sections.
// It has no mutable state and is safe for concurrent use.
type Segmenter struct {
	heuristics Heuristics
}

// NewSegmenter creates a segmenter. Zero heuristic fields take defaults.
func NewSegmenter(h Heuristics) *Segmenter {
	return &Segmenter{heuristics: h.normalize()}
}

// thresholds returns the gap and minimum-section thresholds for a track.
func thresholds(duration float64) (gap, minSection float64) {
	if duration < 120 {
		return 1.5, 8
	}
	return 2.0, 10
}

// DetectSectionsFromGaps partitions words into sections at silences, line
// breaks and the maximum section length. Words must be sorted by start time.
// The result covers [0, duration] without gaps; it is empty when there is
// nothing to segment. A duration shorter than the words is extended to the
// last word's end.
func (s *Segmenter) DetectSectionsFromGaps(words []domain.AlignedWord, duration float64) []domain.DetectedSection {
	if len(words) == 0 || duration <= 0 {
		return []domain.DetectedSection{}
	}
	duration = max(duration, lastWordEnd(words))

	gapThreshold, minSection := thresholds(duration)

	var (
		sections []domain.DetectedSection
		buf      []domain.AlignedWord
		history  []domain.SectionType
	)
	counters := make(map[domain.SectionType]int)

	for i, w := range words {
		buf = append(buf, w)
		sectionDuration := w.EndSeconds - buf[0].StartSeconds

		last := i == len(words)-1
		gap := duration - w.EndSeconds
		if !last {
			gap = words[i+1].StartSeconds - w.EndSeconds
		}
		longEnough := sectionDuration > minSection

		boundary := last ||
			(gap >= gapThreshold && longEnough) ||
			(strings.Contains(w.Text, domain.LineBreakMarker) && longEnough) ||
			sectionDuration >= MaxSectionDuration
		if !boundary {
			continue
		}

		text := joinWords(buf)
		if utf8.RuneCountInString(text) < minLyricsLength {
			buf = nil
			continue
		}

		start := buf[0].StartSeconds
		typ := s.InferSectionType(len(history), start, duration, text, history)
		history = append(history, typ)

		candidate := domain.DetectedSection{
			Type:      typ,
			StartTime: start,
			EndTime:   buf[len(buf)-1].EndSeconds,
			Lyrics:    text,
			Words:     buf,
		}

		var merged bool
		sections, merged = appendOrMerge(sections, candidate)
		if !merged {
			counters[typ]++
			sections[len(sections)-1].Label = sectionLabel(typ, counters[typ])
		}
		buf = nil
	}

	if len(sections) < 2 && duration > FallbackMinDuration {
		return CreateMusicalSections(duration)
	}
	if len(sections) == 0 {
		return []domain.DetectedSection{}
	}

	return repairContinuity(sections, duration)
}

// MergeSections folds each section into its predecessor when both have the
// same type and the silence between them is under MergeThreshold.
// Applying it to its own output changes nothing.
func MergeSections(sections []domain.DetectedSection) []domain.DetectedSection {
	out := make([]domain.DetectedSection, 0, len(sections))
	for _, sec := range sections {
		out, _ = appendOrMerge(out, sec)
	}
	return out
}

func appendOrMerge(sections []domain.DetectedSection, next domain.DetectedSection) ([]domain.DetectedSection, bool) {
	if n := len(sections); n > 0 {
		prev := &sections[n-1]
		if prev.Type == next.Type && next.StartTime-prev.EndTime < MergeThreshold {
			prev.Lyrics = strings.TrimSpace(prev.Lyrics + " " + next.Lyrics)
			prev.Words = append(append([]domain.AlignedWord{}, prev.Words...), next.Words...)
			if next.EndTime > prev.EndTime {
				prev.EndTime = next.EndTime
			}
			return sections, true
		}
	}
	return append(sections, next), false
}

func lastWordEnd(words []domain.AlignedWord) float64 {
	var end float64
	for _, w := range words {
		end = max(end, w.EndSeconds)
	}
	return end
}

// repairContinuity pins the first section to 0, the last to duration and
// makes every boundary shared by its neighbours.
func repairContinuity(sections []domain.DetectedSection, duration float64) []domain.DetectedSection {
	sections[0].StartTime = 0
	for i := 0; i < len(sections)-1; i++ {
		sections[i].EndTime = sections[i+1].StartTime
	}
	sections[len(sections)-1].EndTime = duration
	return sections
}

// InferSectionType guesses the role of a section from its position, its
// lyrics and the types assigned before it. It is a heuristic with no
// accuracy guarantee.
func (s *Segmenter) InferSectionType(index int, startTime, totalDuration float64, lyrics string, history []domain.SectionType) domain.SectionType {
	var position float64
	if totalDuration > 0 {
		position = startTime / totalDuration
	}

	if index == 0 && position < 0.08 {
		return domain.SectionIntro
	}
	if position > 0.92 {
		return domain.SectionOutro
	}

	chorusLikely := s.heuristics.chorusLikely(lyrics)

	var last domain.SectionType
	if len(history) > 0 {
		last = history[len(history)-1]
	}

	if position > 0.55 && position < 0.8 && !chorusLikely && last == domain.SectionChorus &&
		countType(history, domain.SectionChorus) >= 2 {
		return domain.SectionBridge
	}

	if chorusLikely {
		return domain.SectionChorus
	}

	if utf8.RuneCountInString(lyrics) < s.heuristics.PreChorusMaxLength && position > 0.15 && position < 0.35 {
		return domain.SectionPreChorus
	}

	switch last {
	case domain.SectionVerse:
		return domain.SectionChorus
	case domain.SectionChorus:
		return domain.SectionVerse
	}

	return domain.SectionVerse
}

func countType(history []domain.SectionType, typ domain.SectionType) int {
	n := 0
	for _, t := range history {
		if t == typ {
			n++
		}
	}
	return n
}

// joinWords concatenates word texts without break markers.
func joinWords(words []domain.AlignedWord) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(strings.ReplaceAll(w.Text, domain.LineBreakMarker, " "))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

var sectionNames = map[domain.SectionType]string{
	domain.SectionIntro:     "Intro",
	domain.SectionVerse:     "Verse",
	domain.SectionChorus:    "Chorus",
	domain.SectionPreChorus: "Pre-Chorus",
	domain.SectionBridge:    "Bridge",
	domain.SectionOutro:     "Outro",
}

// sectionLabel renders "Verse 2". Intro and outro drop the number on first use.
func sectionLabel(typ domain.SectionType, n int) string {
	name, ok := sectionNames[typ]
	if !ok {
		name = string(typ)
	}
	if n == 1 && (typ == domain.SectionIntro || typ == domain.SectionOutro) {
		return name
	}
	return fmt.Sprintf("%s %d", name, n)
}
