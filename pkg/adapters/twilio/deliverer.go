// Package twilio delivers WhatsApp messages through the twilio tool
// server.
package twilio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/toolgate/internal/logging"
)

// Caller runs a single operation against a tool server.
type Caller interface {
	Execute(ctx context.Context, userID, service, operation string, args map[string]any) (map[string]any, error)
}

// Deliverer sends WhatsApp messages on behalf of the platform user.
type Deliverer struct {
	tools  Caller
	userID string
	logger *slog.Logger
}

// Option configures the Deliverer.
type Option func(*Deliverer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deliverer) { d.logger = logger }
}

// WithPlatformUser sets the credential-store user the Twilio calls run as.
func WithPlatformUser(userID string) Option {
	return func(d *Deliverer) { d.userID = userID }
}

// New creates a Deliverer on top of the given caller.
func New(tools Caller, opts ...Option) *Deliverer {
	d := &Deliverer{
		tools:  tools,
		userID: "platform",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Deliver sends one WhatsApp message body to recipient.
func (d *Deliverer) Deliver(ctx context.Context, recipient, body string) error {
	_, err := d.tools.Execute(ctx, d.userID, "twilio", "send_whatsapp_message", map[string]any{
		"to":   normalizeRecipient(recipient),
		"body": body,
	})
	if err != nil {
		return fmt.Errorf("whatsapp delivery to %s: %w", recipient, err)
	}
	d.logger.Debug("whatsapp message delivered", "to", recipient, "bytes", len(body))
	return nil
}

// normalizeRecipient makes sure the number carries the whatsapp: channel
// prefix Twilio expects.
func normalizeRecipient(recipient string) string {
	if strings.HasPrefix(recipient, "whatsapp:") {
		return recipient
	}
	return "whatsapp:" + recipient
}
