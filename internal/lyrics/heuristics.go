// Package lyrics segments time-aligned lyrics into song sections and tracks
// the active section during playback.
package lyrics

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Heuristics holds the tunable constants of section type inference.
// None of them is load-bearing for correctness; they only shift labels.
type Heuristics struct {
	// ChorusKeywords are hook words and interjections that mark a chorus.
	ChorusKeywords []string
	// RepetitionRatio is the unique-word ratio below which lyrics count as repetitive.
	RepetitionRatio float64
	// RepetitionMinWords is the number of long words that must be exceeded
	// before the ratio is evaluated.
	RepetitionMinWords int
	// PreChorusMaxLength is the lyrics length under which a section may be a pre-chorus.
	PreChorusMaxLength int
}

// DefaultHeuristics returns the stock bilingual heuristics.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		ChorusKeywords: []string{
			"oh", "ooh", "whoa", "yeah", "hey", "baby", "love", "tonight", "forever",
			"детка", "любовь", "малыш", "эй", "навсегда", "сегодня",
		},
		RepetitionRatio:    0.6,
		RepetitionMinWords: 4,
		PreChorusMaxLength: 100,
	}
}

// normalize fills zero fields with defaults.
func (h Heuristics) normalize() Heuristics {
	def := DefaultHeuristics()
	if len(h.ChorusKeywords) == 0 {
		h.ChorusKeywords = def.ChorusKeywords
	}
	if h.RepetitionRatio <= 0 {
		h.RepetitionRatio = def.RepetitionRatio
	}
	if h.RepetitionMinWords <= 0 {
		h.RepetitionMinWords = def.RepetitionMinWords
	}
	if h.PreChorusMaxLength <= 0 {
		h.PreChorusMaxLength = def.PreChorusMaxLength
	}
	return h
}

// tokenize splits lyrics into lower-cased words, dropping punctuation.
func tokenize(lyrics string) []string {
	return strings.FieldsFunc(strings.ToLower(lyrics), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func (h Heuristics) hasChorusKeyword(tokens []string) bool {
	for _, tok := range tokens {
		for _, kw := range h.ChorusKeywords {
			if tok == kw {
				return true
			}
		}
	}
	return false
}

// uniqueRatio is the share of distinct words among words longer than two
// characters. It is 1 when there are too few such words to judge.
func (h Heuristics) uniqueRatio(tokens []string) float64 {
	seen := make(map[string]struct{})
	total := 0
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		total++
		seen[tok] = struct{}{}
	}
	if total <= h.RepetitionMinWords {
		return 1
	}
	return float64(len(seen)) / float64(total)
}

func (h Heuristics) chorusLikely(lyrics string) bool {
	tokens := tokenize(lyrics)
	return h.hasChorusKeyword(tokens) || h.uniqueRatio(tokens) < h.RepetitionRatio
}
