// Package notify delivers one-time passcodes and account emails.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Message is a single outgoing email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Category string
}

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender picks the provider named in cfg.
func NewSender(cfg Config, logger *zap.SugaredLogger) (Sender, error) {
	switch cfg.Provider {
	case ProviderMailtrap:
		if cfg.MailtrapKey == "" {
			return nil, fmt.Errorf("mailtrap: MAILTRAP_API_KEY is required")
		}
		return NewMailtrapSender(cfg, nil), nil
	case ProviderLog, "":
		return &LogSender{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %q", cfg.Provider)
	}
}

type recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailtrapRequest struct {
	From     recipient   `json:"from"`
	To       []recipient `json:"to"`
	Subject  string      `json:"subject"`
	HTML     string      `json:"html,omitempty"`
	Text     string      `json:"text,omitempty"`
	Category string      `json:"category,omitempty"`
}

// MailtrapSender posts messages to the Mailtrap send API.
type MailtrapSender struct {
	url    string
	apiKey string
	from   recipient
	client *http.Client
}

func NewMailtrapSender(cfg Config, client *http.Client) *MailtrapSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &MailtrapSender{
		url:    cfg.MailtrapURL,
		apiKey: cfg.MailtrapKey,
		from:   recipient{Email: cfg.From, Name: cfg.FromName},
		client: client,
	}
}

func (m *MailtrapSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(mailtrapRequest{
		From:     m.from,
		To:       []recipient{{Email: msg.To, Name: msg.ToName}},
		Subject:  msg.Subject,
		HTML:     msg.HTML,
		Text:     msg.Text,
		Category: msg.Category,
	})
	if err != nil {
		return fmt.Errorf("marshal email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mailtrap API returned status: %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. Development only.
type LogSender struct {
	logger *zap.SugaredLogger
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	if l.logger != nil {
		l.logger.Infow("email (log provider)", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	}
	return nil
}
