package lyrics

import (
	"strings"

	"github.com/bissquit/songline/internal/domain"
)

const (
	// PhraseGap is the silence, in seconds, that ends a display line.
	PhraseGap = 0.4
	// MaxWordsPerLine caps line length for display.
	MaxWordsPerLine = 10
)

// Line is a display line of aligned words.
type Line struct {
	Text      string               `json:"text"`
	StartTime float64              `json:"start_time"`
	EndTime   float64              `json:"end_time"`
	Words     []domain.AlignedWord `json:"words"`
}

// GroupLines splits words into lines at break markers, phrase gaps and
// MaxWordsPerLine.
func GroupLines(words []domain.AlignedWord) []Line {
	var (
		lines   []Line
		current []domain.AlignedWord
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		lines = append(lines, Line{
			Text:      joinWords(current),
			StartTime: current[0].StartSeconds,
			EndTime:   current[len(current)-1].EndSeconds,
			Words:     current,
		})
		current = nil
	}

	for i, w := range words {
		current = append(current, w)

		brk := strings.Contains(w.Text, domain.LineBreakMarker) || len(current) >= MaxWordsPerLine
		if i < len(words)-1 && words[i+1].StartSeconds-w.EndSeconds >= PhraseGap {
			brk = true
		}
		if brk {
			flush()
		}
	}
	flush()

	return lines
}
