// Package mailer sends email through the platform's HTTP email service.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
)

// HTTPMailer posts messages to the email service's /send endpoint.
type HTTPMailer struct {
	url      string
	from     string
	fromName string
	http     *http.Client
	logger   *slog.Logger
}

// Option configures the HTTPMailer.
type Option func(*HTTPMailer)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(m *HTTPMailer) { m.http = client }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *HTTPMailer) { m.logger = logger }
}

// New creates an HTTPMailer targeting url, sending as from/fromName.
func New(url, from, fromName string, opts ...Option) *HTTPMailer {
	m := &HTTPMailer{
		url:      url,
		from:     from,
		fromName: fromName,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	ToRecipients []recipient       `json:"to_recipients"`
	Subject      string            `json:"subject"`
	BodyHTML     string            `json:"body_html"`
	FromAddress  string            `json:"from_address"`
	FromName     string            `json:"from_name,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// Send posts one email. Any non-2xx answer from the service is an error.
func (m *HTTPMailer) Send(ctx context.Context, email domain.Email) error {
	payload := sendRequest{
		ToRecipients: []recipient{{Email: email.ToAddress, Name: email.ToName}},
		Subject:      email.Subject,
		BodyHTML:     email.BodyHTML,
		FromAddress:  m.from,
		FromName:     m.fromName,
		Headers:      email.Headers,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("email service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email service returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	m.logger.Info("email sent", "to", email.ToAddress, "subject", email.Subject)
	return nil
}
