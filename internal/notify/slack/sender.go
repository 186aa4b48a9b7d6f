// Package slack posts combined price tables to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/agrishikyo-relay/internal/market"
	"github.com/JakeFAU/agrishikyo-relay/internal/notify"
)

// Payload is the JSON body Slack expects.
type Payload struct {
	Text      string `json:"text"`
	IconEmoji string `json:"icon_emoji"`
	Username  string `json:"username"`
}

// WebhookError reports a non-2xx webhook response.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("slack webhook returned %d: %s", e.StatusCode, e.Body)
}

// Observer is notified of every webhook response code, zero on transport
// failure.
type Observer interface {
	ObserveWebhook(code int)
}

// Config configures the Sender.
type Config struct {
	WebhookURL string
	IconEmoji  string
	Username   string
	Intro      Intro
	Timeout    time.Duration
}

// Sender delivers tables as a single webhook message. It never retries.
type Sender struct {
	cfg      Config
	client   *resty.Client
	observer Observer
	logger   *zap.Logger
}

var _ notify.Notifier = (*Sender)(nil)

// NewSender builds a Sender. observer may be nil.
func NewSender(cfg Config, observer Observer, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json; charset=utf-8")
	return &Sender{cfg: cfg, client: client, observer: observer, logger: logger.Named("slack")}
}

// Notify formats the table and posts it.
func (s *Sender) Notify(ctx context.Context, table market.Table) error {
	text, err := s.cfg.Intro.FormatMessage(table)
	if err != nil {
		return err
	}
	return s.Send(ctx, text)
}

// Send posts text as one message.
func (s *Sender) Send(ctx context.Context, text string) error {
	body, err := encode(Payload{Text: text, IconEmoji: s.cfg.IconEmoji, Username: s.cfg.Username})
	if err != nil {
		return err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(s.cfg.WebhookURL)
	if err != nil {
		s.observe(0)
		return fmt.Errorf("post slack webhook: %w", err)
	}
	s.observe(resp.StatusCode())
	if !resp.IsSuccess() {
		return &WebhookError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	s.logger.Info("message delivered", zap.Int("status", resp.StatusCode()), zap.Int("bytes", len(body)))
	return nil
}

func (s *Sender) observe(code int) {
	if s.observer != nil {
		s.observer.ObserveWebhook(code)
	}
}

// encode keeps Slack's <url|label> link markup unescaped.
func encode(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode slack payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
