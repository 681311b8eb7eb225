package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unknownContent struct{}

func (unknownContent) Kind() Kind { return "mystery" }
func (unknownContent) isContent() {}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Len(t, r.templates, len(Kinds))
}

func TestRenderer_Render(t *testing.T) {
	tests := []struct {
		name        string
		content     Content
		wantSubject string
		wantBody    string
	}{
		{
			name: "generation complete",
			content: GenerationComplete{
				TrackID:         "t1",
				Title:           "Night <Drive>",
				AudioURL:        "https://cdn.example.com/t1.mp3",
				Performer:       "Songline",
				DurationSeconds: 185,
			},
			wantSubject: "[Track ready] Night <Drive>",
			wantBody: "🎵 <b>Night &lt;Drive&gt;</b> is ready!\n" +
				"👤 Songline\n" +
				"⏱ 3:05\n\n" +
				`<a href="https://cdn.example.com/t1.mp3">Listen</a>`,
		},
		{
			name: "generation complete without optional fields",
			content: GenerationComplete{
				TrackID:  "t1",
				Title:    "Song",
				AudioURL: "https://cdn.example.com/t1.mp3",
			},
			wantSubject: "[Track ready] Song",
			wantBody:    "🎵 <b>Song</b> is ready!\n\n" + `<a href="https://cdn.example.com/t1.mp3">Listen</a>`,
		},
		{
			name:        "generation failed",
			content:     GenerationFailed{TaskID: "task-1", Title: "Song", Reason: "timeout"},
			wantSubject: "[Generation failed] Song",
			wantBody:    "❌ Generation failed: <b>Song</b>\n\ntimeout\n\nTask: <code>task-1</code>",
		},
		{
			name:        "generation failed without title",
			content:     GenerationFailed{TaskID: "task-1", Reason: "timeout"},
			wantSubject: "[Generation failed]",
			wantBody:    "❌ Generation failed\n\ntimeout\n\nTask: <code>task-1</code>",
		},
		{
			name:        "stems ready",
			content:     StemsReady{TrackID: "t1", Title: "Song", Stems: []string{"vocals", "drums"}},
			wantSubject: "[Stems ready] Song",
			wantBody:    "🎚 Stems for <b>Song</b> are ready:\n• Vocals\n• Drums",
		},
		{
			name:        "analysis complete",
			content:     AnalysisComplete{TrackID: "t1", Title: "Song", BPM: 119.6, Key: "A minor", Sections: 6},
			wantSubject: "[Analysis ready] Song",
			wantBody:    "📊 Analysis of <b>Song</b> is complete.\nTempo: 120 BPM\nKey: A minor\nSections: 6",
		},
		{
			name:        "analysis complete without details",
			content:     AnalysisComplete{TrackID: "t1", Title: "Song"},
			wantSubject: "[Analysis ready] Song",
			wantBody:    "📊 Analysis of <b>Song</b> is complete.",
		},
	}

	r, err := NewRenderer()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body, err := r.Render(Payload{Recipient: telegramRecipient(), Content: tt.content})
			require.NoError(t, err)

			assert.Equal(t, tt.wantSubject, subject)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, _, err = r.Render(Payload{Content: unknownContent{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "0:00"},
		{9, "0:09"},
		{59.6, "1:00"},
		{185, "3:05"},
		{3725, "62:05"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, formatDuration(tc.seconds))
		})
	}
}

func TestFormatBPM(t *testing.T) {
	assert.Equal(t, "120", formatBPM(119.6))
	assert.Equal(t, "90", formatBPM(90))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Vocals", titleCase("vocals"))
	assert.Equal(t, "Backing Vocals", titleCase("backing vocals"))
	assert.Equal(t, "Drums", titleCase("DRUMS"))
}

func TestRenderSubject_Unknown(t *testing.T) {
	assert.Equal(t, "Notification", renderSubject(Payload{Content: unknownContent{}}))
}
