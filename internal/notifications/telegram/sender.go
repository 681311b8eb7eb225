// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bissquit/songline/internal/notifications"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit = 25.0 // messages per second, under Telegram's 30/s global cap
	defaultTimeout   = 10 * time.Second
	maxCaptionLength = 1024
)

// Descriptions Telegram returns when a chat can never be reached again.
var permanentDescriptions = []string{
	"chat not found",
	"bot was blocked",
	"user is deactivated",
	"chat was deleted",
}

// Config holds telegram sender configuration.
type Config struct {
	Enabled   bool
	BotToken  string
	RateLimit float64
	// APIEndpoint is a format string with the token and method, like
	// tgbotapi.APIEndpoint. Empty uses the public Bot API.
	APIEndpoint string
	Timeout     time.Duration
}

// Sender implements notifications.Sender for Telegram chats.
type Sender struct {
	config  Config
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewSender creates a new telegram sender. When enabled it checks the
// token with a getMe call.
func NewSender(config Config) (*Sender, error) {
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.APIEndpoint == "" {
		config.APIEndpoint = tgbotapi.APIEndpoint
	}

	s := &Sender{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}

	if config.Enabled {
		if config.BotToken == "" {
			return nil, errors.New("telegram sender: bot token is required when enabled")
		}
		bot, err := tgbotapi.NewBotAPIWithClient(config.BotToken, config.APIEndpoint, &http.Client{Timeout: config.Timeout})
		if err != nil {
			return nil, fmt.Errorf("telegram sender: connect bot: %w", err)
		}
		s.bot = bot
		slog.Info("telegram sender configured",
			"bot", bot.Self.UserName,
			"rate_limit", config.RateLimit,
		)
	} else {
		slog.Info("telegram sender configured", "enabled", false)
	}

	return s, nil
}

// Channel implements notifications.Sender.
func (s *Sender) Channel() notifications.Channel {
	return notifications.ChannelTelegram
}

// Send delivers msg to the recipient's chat. Finished tracks go out as
// audio with the rendered text as caption.
func (s *Sender) Send(ctx context.Context, msg notifications.Message) (notifications.Delivery, error) {
	if s.bot == nil {
		slog.Debug("telegram sender disabled, skipping",
			"chat_id", msg.Payload.Recipient.ChatID,
		)
		return notifications.Delivery{Skipped: true, Reason: "telegram disabled"}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return notifications.Delivery{}, fmt.Errorf("rate limit wait: %w", err)
	}

	if _, err := s.bot.Send(s.chattable(msg)); err != nil {
		return notifications.Delivery{}, classify(err)
	}

	slog.Debug("telegram message sent",
		"chat_id", msg.Payload.Recipient.ChatID,
		"kind", msg.Payload.Kind(),
	)
	return notifications.Delivery{}, nil
}

func (s *Sender) chattable(msg notifications.Message) tgbotapi.Chattable {
	chatID := msg.Payload.Recipient.ChatID

	if c, ok := msg.Payload.Content.(notifications.GenerationComplete); ok && c.AudioURL != "" {
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FileURL(c.AudioURL))
		audio.Title = c.Title
		audio.Performer = c.Performer
		audio.Duration = int(c.DurationSeconds)
		audio.Caption = truncate(msg.Body, maxCaptionLength)
		audio.ParseMode = tgbotapi.ModeHTML
		return audio
	}

	text := tgbotapi.NewMessage(chatID, msg.Body)
	text.ParseMode = tgbotapi.ModeHTML
	text.DisableWebPagePreview = true
	return text
}

// classify marks Bot API errors as permanent or retryable.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		// Transport failure.
		return notifications.NewRetryableError(fmt.Errorf("telegram request: %w", err))
	}

	wrapped := fmt.Errorf("telegram error %d: %w", apiErr.Code, err)

	desc := strings.ToLower(apiErr.Message)
	for _, p := range permanentDescriptions {
		if strings.Contains(desc, p) {
			return notifications.NewNonRetryableError(wrapped)
		}
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
		return notifications.NewRetryableError(wrapped)
	case apiErr.Code >= 500:
		return notifications.NewRetryableError(wrapped)
	case apiErr.Code == http.StatusBadRequest,
		apiErr.Code == http.StatusUnauthorized,
		apiErr.Code == http.StatusForbidden,
		apiErr.Code == http.StatusNotFound:
		return notifications.NewNonRetryableError(wrapped)
	default:
		return notifications.NewRetryableError(wrapped)
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
