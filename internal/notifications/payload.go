package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind identifies a notification variant.
type Kind string

// Notification kinds.
const (
	KindGenerationComplete Kind = "generation_complete"
	KindGenerationFailed   Kind = "generation_failed"
	KindStemsReady         Kind = "stems_ready"
	KindAnalysisComplete   Kind = "analysis_complete"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindGenerationComplete, KindGenerationFailed, KindStemsReady, KindAnalysisComplete}

// Priority orders the queue. The zero value is treated as PriorityNormal.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// Channel is the delivery route of a notification.
type Channel string

// Channels.
const (
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

// Recipient addresses a notification.
type Recipient struct {
	UserID  string  `json:"user_id" validate:"required"`
	ChatID  int64   `json:"chat_id,omitempty" validate:"required_if=Channel telegram"`
	Channel Channel `json:"channel" validate:"required,oneof=telegram webhook"`
}

// Content is the kind-specific part of a payload. The set of
// implementations is closed.
type Content interface {
	Kind() Kind
	isContent()
}

// GenerationComplete announces a finished track.
type GenerationComplete struct {
	TrackID         string  `json:"track_id" validate:"required"`
	Title           string  `json:"title" validate:"required"`
	AudioURL        string  `json:"audio_url" validate:"required,url"`
	CoverURL        string  `json:"cover_url,omitempty" validate:"omitempty,url"`
	Performer       string  `json:"performer,omitempty"`
	DurationSeconds float64 `json:"duration_s,omitempty" validate:"gte=0"`
}

// GenerationFailed reports a generation task that could not finish.
type GenerationFailed struct {
	TaskID string `json:"task_id" validate:"required"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason" validate:"required"`
}

// StemsReady announces separated stems of a track.
type StemsReady struct {
	TrackID string   `json:"track_id" validate:"required"`
	Title   string   `json:"title" validate:"required"`
	Stems   []string `json:"stems" validate:"required,min=1,dive,required"`
}

// AnalysisComplete announces finished audio analysis of a track.
type AnalysisComplete struct {
	TrackID  string  `json:"track_id" validate:"required"`
	Title    string  `json:"title" validate:"required"`
	BPM      float64 `json:"bpm,omitempty" validate:"gte=0"`
	Key      string  `json:"key,omitempty"`
	Sections int     `json:"sections,omitempty" validate:"gte=0"`
}

// Kind implements Content.
func (GenerationComplete) Kind() Kind { return KindGenerationComplete }

// Kind implements Content.
func (GenerationFailed) Kind() Kind { return KindGenerationFailed }

// Kind implements Content.
func (StemsReady) Kind() Kind { return KindStemsReady }

// Kind implements Content.
func (AnalysisComplete) Kind() Kind { return KindAnalysisComplete }

func (GenerationComplete) isContent() {}
func (GenerationFailed) isContent()   {}
func (StemsReady) isContent()         {}
func (AnalysisComplete) isContent()   {}

// Payload is a validated notification. Build it with NewPayload or decode
// it from JSON and call Validate.
type Payload struct {
	Priority  Priority
	Recipient Recipient
	Content   Content
}

var validate = validator.New()

// NewPayload builds a payload and checks the fields required by its kind.
func NewPayload(priority Priority, recipient Recipient, content Content) (Payload, error) {
	if priority == "" {
		priority = PriorityNormal
	}
	p := Payload{Priority: priority, Recipient: recipient, Content: content}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Kind returns the kind of the content, or "" when there is none.
func (p Payload) Kind() Kind {
	if p.Content == nil {
		return ""
	}
	return p.Content.Kind()
}

// Validate checks the recipient, the priority and the content fields.
func (p Payload) Validate() error {
	if p.Content == nil {
		return fmt.Errorf("%w: missing content", ErrInvalidPayload)
	}
	switch p.Priority {
	case "", PriorityHigh, PriorityNormal, PriorityLow:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidPayload, p.Priority)
	}
	if err := validate.Struct(p.Recipient); err != nil {
		return fmt.Errorf("%w: recipient: %w", ErrInvalidPayload, err)
	}
	if err := validate.Struct(p.Content); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, p.Kind(), err)
	}
	return nil
}

type payloadJSON struct {
	Type      Kind            `json:"type"`
	Priority  Priority        `json:"priority,omitempty"`
	Recipient Recipient       `json:"recipient"`
	Data      json.RawMessage `json:"data"`
}

// MarshalJSON encodes the payload as {"type", "priority", "recipient", "data"}.
func (p Payload) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(p.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(payloadJSON{
		Type:      p.Kind(),
		Priority:  p.Priority,
		Recipient: p.Recipient,
		Data:      data,
	})
}

// UnmarshalJSON decodes the data field into the variant named by type.
// It does not validate.
func (p *Payload) UnmarshalJSON(b []byte) error {
	var raw payloadJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	content, err := decodeContent(raw.Type, raw.Data)
	if err != nil {
		return err
	}

	p.Priority = raw.Priority
	p.Recipient = raw.Recipient
	p.Content = content
	return nil
}

func decodeContent(kind Kind, data json.RawMessage) (Content, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	var (
		content Content
		err     error
	)
	switch kind {
	case KindGenerationComplete:
		var c GenerationComplete
		err = json.Unmarshal(data, &c)
		content = c
	case KindGenerationFailed:
		var c GenerationFailed
		err = json.Unmarshal(data, &c)
		content = c
	case KindStemsReady:
		var c StemsReady
		err = json.Unmarshal(data, &c)
		content = c
	case KindAnalysisComplete:
		var c AnalysisComplete
		err = json.Unmarshal(data, &c)
		content = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", kind, err)
	}
	return content, nil
}
