package lyrics

import (
	"math"

	"github.com/bissquit/songline/internal/domain"
)

type span struct {
	typ   domain.SectionType
	start float64
	end   float64
}

// CreateMusicalSections synthesizes a typical song structure from the track
// length alone. Boundaries are plain arithmetic on duration.
func CreateMusicalSections(duration float64) []domain.DetectedSection {
	if duration <= 0 {
		return []domain.DetectedSection{}
	}

	var spans []span
	switch {
	case duration < 60:
		spans = fractionSpans(duration, []domain.SectionType{
			domain.SectionIntro, domain.SectionVerse, domain.SectionChorus, domain.SectionOutro,
		}, []float64{0.1, 0.5, 0.9})
	case duration < 120:
		spans = fractionSpans(duration, []domain.SectionType{
			domain.SectionIntro, domain.SectionVerse, domain.SectionChorus,
			domain.SectionVerse, domain.SectionChorus, domain.SectionOutro,
		}, []float64{0.08, 0.33, 0.55, 0.75, 0.92})
	default:
		spans = fullLengthSpans(duration)
	}

	counters := make(map[domain.SectionType]int)
	sections := make([]domain.DetectedSection, 0, len(spans))
	for _, sp := range spans {
		counters[sp.typ]++
		sections = append(sections, domain.DetectedSection{
			Type:      sp.typ,
			Label:     sectionLabel(sp.typ, counters[sp.typ]),
			StartTime: sp.start,
			EndTime:   sp.end,
			Words:     []domain.AlignedWord{},
		})
	}
	return sections
}

// fractionSpans cuts [0, duration] at the given fractions.
func fractionSpans(duration float64, types []domain.SectionType, cuts []float64) []span {
	spans := make([]span, len(types))
	start := 0.0
	for i, typ := range types {
		end := duration
		if i < len(cuts) {
			end = duration * cuts[i]
		}
		spans[i] = span{typ: typ, start: start, end: end}
		start = end
	}
	return spans
}

// fullLengthSpans lays out intro, two verse/chorus pairs, an optional
// bridge with a third chorus, and an outro that takes the remainder.
func fullLengthSpans(duration float64) []span {
	introLen := math.Min(duration*0.08, 12)
	outroLen := math.Min(duration*0.08, 12)
	verseLen := duration * 0.17
	chorusLen := duration * 0.13
	bridgeLen := duration * 0.1

	spans := []span{{typ: domain.SectionIntro, start: 0, end: introLen}}
	cursor := introLen
	add := func(typ domain.SectionType, length float64) {
		spans = append(spans, span{typ: typ, start: cursor, end: cursor + length})
		cursor += length
	}

	add(domain.SectionVerse, verseLen)
	add(domain.SectionChorus, chorusLen)
	add(domain.SectionVerse, verseLen)
	add(domain.SectionChorus, chorusLen)

	if duration > 150 && cursor+bridgeLen+chorusLen <= duration-outroLen {
		add(domain.SectionBridge, bridgeLen)
		add(domain.SectionChorus, chorusLen)
	}

	spans = append(spans, span{typ: domain.SectionOutro, start: cursor, end: duration})
	return spans
}
