package lyrics

import (
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/bissquit/songline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

// phrase returns n one-second words starting at start, 0.1s apart.
func phrase(start float64, n int, prefix string) []domain.AlignedWord {
	words := make([]domain.AlignedWord, 0, n)
	for i := 0; i < n; i++ {
		s := start + float64(i)*1.1
		words = append(words, domain.AlignedWord{
			Text:         fmt.Sprintf("%s%02dx%02d", prefix, int(start), i),
			StartSeconds: s,
			EndSeconds:   s + 1,
		})
	}
	return words
}

func phrases(starts []float64, n int) []domain.AlignedWord {
	var words []domain.AlignedWord
	for _, s := range starts {
		words = append(words, phrase(s, n, "lorem")...)
	}
	return words
}

func assertContiguous(t *testing.T, sections []domain.DetectedSection, duration float64) {
	t.Helper()
	require.NotEmpty(t, sections)
	assert.InDelta(t, 0, sections[0].StartTime, eps)
	assert.InDelta(t, duration, sections[len(sections)-1].EndTime, eps)
	for i := 0; i < len(sections)-1; i++ {
		assert.InDelta(t, sections[i].EndTime, sections[i+1].StartTime, eps, "boundary %d", i)
	}
	for i, s := range sections {
		assert.Less(t, s.StartTime, s.EndTime, "section %d", i)
	}
}

func TestDetectSectionsFromGaps_Contiguity(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	tests := []struct {
		name     string
		words    []domain.AlignedWord
		duration float64
	}{
		{
			name:     "full length track",
			words:    phrases([]float64{15, 45, 80, 115, 150, 185}, 12),
			duration: 220,
		},
		{
			name:     "short track",
			words:    phrases([]float64{3, 20, 40, 60}, 9),
			duration: 90,
		},
		{
			name:     "first word late and last word early",
			words:    phrases([]float64{30, 70, 110}, 10),
			duration: 300,
		},
		{
			name: "line break markers",
			words: append(
				[]domain.AlignedWord{
					{Text: "walking", StartSeconds: 1, EndSeconds: 2},
					{Text: "through", StartSeconds: 2.1, EndSeconds: 6},
					{Text: "the night\n", StartSeconds: 6.1, EndSeconds: 11},
				},
				phrases([]float64{12, 30}, 10)...,
			),
			duration: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := seg.DetectSectionsFromGaps(tt.words, tt.duration)
			assertContiguous(t, sections, tt.duration)
		})
	}
}

func TestDetectSectionsFromGaps_DurationShorterThanWords(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())
	words := phrases([]float64{2, 30}, 8)
	end := words[len(words)-1].EndSeconds

	sections := seg.DetectSectionsFromGaps(words, 20)

	assertContiguous(t, sections, end)
}

func TestDetectSectionsFromGaps_GapThreshold(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	tests := []struct {
		name        string
		secondStart float64
		want        int
	}{
		{name: "gap above threshold splits", secondStart: 12.5, want: 2},
		{name: "gap below threshold joins", secondStart: 12.3, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// First phrase ends at 10.9s; short tracks split at 1.5s.
			words := append(phrase(0, 10, "lorem"), phrase(tt.secondStart, 10, "ipsum")...)

			sections := seg.DetectSectionsFromGaps(words, 40)

			require.Len(t, sections, tt.want)
			assertContiguous(t, sections, 40)
		})
	}
}

func TestDetectSectionsFromGaps_Boundaries(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	sections := seg.DetectSectionsFromGaps(phrases([]float64{15, 45, 80}, 12), 200)

	require.Len(t, sections, 3)
	for i, s := range sections {
		assert.Len(t, s.Words, 12, "section %d", i)
	}
	assert.Equal(t, "lorem15x00", sections[0].Words[0].Text)
	assert.Equal(t, "lorem45x00", sections[1].Words[0].Text)
	assert.Equal(t, "lorem80x00", sections[2].Words[0].Text)
}

func TestDetectSectionsFromGaps_SmallGapsIgnored(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	// 0.7s gaps never split even after the minimum section length.
	var words []domain.AlignedWord
	for i := 0; i < 30; i++ {
		s := float64(i) * 1.7
		words = append(words, domain.AlignedWord{Text: fmt.Sprintf("word%02d", i), StartSeconds: s, EndSeconds: s + 1})
	}
	words = append(words, phrase(70, 10, "tail")...)

	sections := seg.DetectSectionsFromGaps(words, 100)

	require.Len(t, sections, 2)
	assert.Len(t, sections[0].Words, 30)
}

func TestDetectSectionsFromGaps_MaxSectionDuration(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	// One unbroken 110s phrase gets cut by the hard cap.
	var words []domain.AlignedWord
	for i := 0; i < 100; i++ {
		s := float64(i) * 1.1
		words = append(words, domain.AlignedWord{Text: fmt.Sprintf("word%03d", i), StartSeconds: s, EndSeconds: s + 1})
	}

	sections := seg.DetectSectionsFromGaps(words, 120)

	require.GreaterOrEqual(t, len(sections), 3)
	for i, s := range sections[:len(sections)-1] {
		last := s.Words[len(s.Words)-1]
		assert.LessOrEqual(t, last.EndSeconds-s.Words[0].StartSeconds, MaxSectionDuration+1.1, "section %d", i)
	}
	assertContiguous(t, sections, 120)
}

func TestDetectSectionsFromGaps_MinimumContent(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	words := phrase(5, 10, "lorem")
	// A long lone interjection is flushed on its own and discarded.
	words = append(words, domain.AlignedWord{Text: "ah", StartSeconds: 30, EndSeconds: 42})
	words = append(words, phrase(50, 10, "ipsum")...)
	words = append(words, phrase(80, 10, "dolor")...)

	sections := seg.DetectSectionsFromGaps(words, 110)

	require.Len(t, sections, 3)
	for i, s := range sections {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(s.Lyrics), 6, "section %d", i)
		assert.NotContains(t, s.Lyrics, "ah ", "section %d", i)
		for _, w := range s.Words {
			assert.NotEqual(t, "ah", w.Text)
		}
	}
	assertContiguous(t, sections, 110)
}

func TestDetectSectionsFromGaps_Fallback(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	tests := []struct {
		name     string
		words    []domain.AlignedWord
		duration float64
	}{
		{
			name:     "single word over the whole track",
			words:    []domain.AlignedWord{{Text: "instrumental", StartSeconds: 0, EndSeconds: 90}},
			duration: 90,
		},
		{
			name:     "only noise",
			words:    []domain.AlignedWord{{Text: "uh", StartSeconds: 10, EndSeconds: 11}},
			duration: 90,
		},
		{
			name:     "one section on a long track",
			words:    phrase(20, 10, "lorem"),
			duration: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := seg.DetectSectionsFromGaps(tt.words, tt.duration)
			assert.Equal(t, CreateMusicalSections(tt.duration), sections)
		})
	}
}

func TestDetectSectionsFromGaps_ShortTrackKeepsSingleSection(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	sections := seg.DetectSectionsFromGaps(phrase(2, 10, "lorem"), 30)

	require.Len(t, sections, 1)
	assert.Equal(t, domain.SectionIntro, sections[0].Type)
	assert.Equal(t, "Intro", sections[0].Label)
	assertContiguous(t, sections, 30)
}

func TestDetectSectionsFromGaps_DegenerateInput(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	assert.Empty(t, seg.DetectSectionsFromGaps(nil, 100))
	assert.Empty(t, seg.DetectSectionsFromGaps(phrase(0, 5, "lorem"), 0))
	assert.Empty(t, seg.DetectSectionsFromGaps(phrase(0, 5, "lorem"), -3))

	// Noise only on a short track: nothing to show and no fallback.
	sections := seg.DetectSectionsFromGaps([]domain.AlignedWord{{Text: "mm", StartSeconds: 1, EndSeconds: 2}}, 30)
	assert.NotNil(t, sections)
	assert.Empty(t, sections)
}

func TestDetectSectionsFromGaps_TypeAlternation(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())

	words := phrases([]float64{60, 100, 140, 180, 220, 260, 300}, 10)
	sections := seg.DetectSectionsFromGaps(words, 600)

	require.Len(t, sections, 7)
	for i, s := range sections {
		want := domain.SectionVerse
		if i%2 == 1 {
			want = domain.SectionChorus
		}
		assert.Equal(t, want, s.Type, "section %d", i)
	}

	labels := make([]string, 0, len(sections))
	for _, s := range sections {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{
		"Verse 1", "Chorus 1", "Verse 2", "Chorus 2", "Verse 3", "Chorus 3", "Verse 4",
	}, labels)
}

func TestMergeSections(t *testing.T) {
	sections := []domain.DetectedSection{
		{Type: domain.SectionVerse, StartTime: 0, EndTime: 10, Lyrics: "first line", Words: []domain.AlignedWord{{Text: "first"}}},
		{Type: domain.SectionVerse, StartTime: 10.5, EndTime: 20, Lyrics: "second line", Words: []domain.AlignedWord{{Text: "second"}}},
		{Type: domain.SectionChorus, StartTime: 20.2, EndTime: 30, Lyrics: "hook"},
		{Type: domain.SectionChorus, StartTime: 32, EndTime: 40, Lyrics: "hook again"},
	}

	merged := MergeSections(sections)

	require.Len(t, merged, 3)
	assert.Equal(t, "first line second line", merged[0].Lyrics)
	assert.Equal(t, 20.0, merged[0].EndTime)
	assert.Len(t, merged[0].Words, 2)
	assert.Equal(t, domain.SectionChorus, merged[1].Type)

	again := MergeSections(merged)
	assert.Equal(t, merged, again)
}

func TestInferSectionType(t *testing.T) {
	seg := NewSegmenter(DefaultHeuristics())
	long := "we keep walking down an endless road under the quiet city lights until morning comes again for us all"

	tests := []struct {
		name     string
		index    int
		start    float64
		lyrics   string
		history  []domain.SectionType
		expected domain.SectionType
	}{
		{"intro at the very start", 0, 5, long, nil, domain.SectionIntro},
		{"first section past intro zone", 0, 10, long, nil, domain.SectionVerse},
		{"outro near the end", 6, 95, "oh yeah", []domain.SectionType{domain.SectionVerse}, domain.SectionOutro},
		{"keyword chorus", 2, 40, "and we ride tonight", []domain.SectionType{domain.SectionChorus}, domain.SectionChorus},
		{"cyrillic keyword chorus", 2, 40, "ты моя любовь навсегда", []domain.SectionType{domain.SectionChorus}, domain.SectionChorus},
		{"keyword must be a whole word", 2, 40, long + " lovely", []domain.SectionType{domain.SectionChorus}, domain.SectionVerse},
		{"repetitive lyrics", 2, 40, "run run run run run away", []domain.SectionType{domain.SectionChorus}, domain.SectionChorus},
		{
			"bridge after second chorus",
			4, 60, long,
			[]domain.SectionType{domain.SectionVerse, domain.SectionChorus, domain.SectionVerse, domain.SectionChorus},
			domain.SectionBridge,
		},
		{
			"no bridge after single chorus",
			2, 60, long,
			[]domain.SectionType{domain.SectionVerse, domain.SectionChorus},
			domain.SectionVerse,
		},
		{
			"no bridge when last was verse",
			5, 60, long,
			[]domain.SectionType{domain.SectionChorus, domain.SectionChorus, domain.SectionVerse},
			domain.SectionChorus,
		},
		{"pre-chorus", 1, 20, "walking down the street", []domain.SectionType{domain.SectionVerse}, domain.SectionPreChorus},
		{"verse then chorus", 1, 40, long, []domain.SectionType{domain.SectionVerse}, domain.SectionChorus},
		{"chorus then verse", 2, 40, long, []domain.SectionType{domain.SectionChorus}, domain.SectionVerse},
		{"default verse", 2, 40, long, []domain.SectionType{domain.SectionPreChorus}, domain.SectionVerse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seg.InferSectionType(tt.index, tt.start, 100, tt.lyrics, tt.history)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInferSectionType_CustomHeuristics(t *testing.T) {
	seg := NewSegmenter(Heuristics{ChorusKeywords: []string{"sun"}})

	assert.Equal(t, domain.SectionChorus,
		seg.InferSectionType(1, 40, 100, "here comes the sun", []domain.SectionType{domain.SectionChorus}))
	assert.Equal(t, domain.SectionVerse,
		seg.InferSectionType(1, 40, 100, "oh yeah here we go", []domain.SectionType{domain.SectionChorus}))
}

func TestSectionLabel(t *testing.T) {
	tests := []struct {
		typ      domain.SectionType
		n        int
		expected string
	}{
		{domain.SectionIntro, 1, "Intro"},
		{domain.SectionOutro, 1, "Outro"},
		{domain.SectionOutro, 2, "Outro 2"},
		{domain.SectionVerse, 1, "Verse 1"},
		{domain.SectionPreChorus, 2, "Pre-Chorus 2"},
		{domain.SectionBridge, 1, "Bridge 1"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, sectionLabel(tt.typ, tt.n))
		})
	}
}
