package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notifications from templates. Bodies are Telegram HTML.
type Renderer struct {
	templates map[Kind]*template.Template
	funcMap   template.FuncMap
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":          titleCase,
		"upper":          strings.ToUpper,
		"lower":          strings.ToLower,
		"join":           strings.Join,
		"formatDuration": formatDuration,
		"formatBPM":      formatBPM,
		"escapeHTML":     html.EscapeString,
	}

	r := &Renderer{
		templates: make(map[Kind]*template.Template),
		funcMap:   funcMap,
	}

	for _, kind := range Kinds {
		filename := fmt.Sprintf("templates/%s.tmpl", kind)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(kind)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", kind, err)
		}

		r.templates[kind] = tmpl
	}

	return r, nil
}

// Render renders a payload. Returns subject and body.
func (r *Renderer) Render(payload Payload) (subject, body string, err error) {
	kind := payload.Kind()
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload.Content); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", kind, err)
	}

	return renderSubject(payload), strings.TrimSpace(buf.String()), nil
}

// renderSubject generates the notification subject line.
func renderSubject(payload Payload) string {
	switch c := payload.Content.(type) {
	case GenerationComplete:
		return fmt.Sprintf("[Track ready] %s", c.Title)
	case GenerationFailed:
		if c.Title != "" {
			return fmt.Sprintf("[Generation failed] %s", c.Title)
		}
		return "[Generation failed]"
	case StemsReady:
		return fmt.Sprintf("[Stems ready] %s", c.Title)
	case AnalysisComplete:
		return fmt.Sprintf("[Analysis ready] %s", c.Title)
	default:
		return "Notification"
	}
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	minutes := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

func formatBPM(bpm float64) string {
	return fmt.Sprintf("%.0f", bpm)
}
