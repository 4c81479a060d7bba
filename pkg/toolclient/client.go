package toolclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
	"github.com/aretw0/toolgate/pkg/ports"
)

// Sender is the slice of the orchestrator the client needs.
type Sender interface {
	Send(ctx context.Context, name string, req domain.CapabilityRequest, overlay map[string]string) (map[string]any, error)
}

// Client is the façade over the orchestrator and the credential store.
// Per call, it loads the user's tokens for a service, maps them onto the
// server's environment overlay, and performs one capability exchange.
type Client struct {
	orch   Sender
	creds  ports.CredentialStore
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a Client.
func New(orch Sender, creds ports.CredentialStore, opts ...Option) *Client {
	c := &Client{
		orch:   orch,
		creds:  creds,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs one operation against the named service on behalf of userID.
// The environment overlay derived from the stored tokens applies only if
// this call has to spawn the server; the shared descriptor is never touched.
func (c *Client) Execute(ctx context.Context, userID, service, operation string, args map[string]any) (map[string]any, error) {
	def, ok := services[service]
	if !ok {
		return nil, fmt.Errorf("service %q: %w", service, domain.ErrNotRegistered)
	}

	tokens, err := c.creds.Load(ctx, userID, service)
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", service, err)
	}
	for _, key := range def.requiredTokens {
		if tokens[key] == "" {
			return nil, fmt.Errorf("service %q is missing token %q: %w", service, key, domain.ErrMissingCredentials)
		}
	}

	req, err := domain.NewCapabilityRequest(operation, args)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("executing tool operation", "service", service, "operation", operation, "user", userID)
	result, err := c.orch.Send(ctx, service, req, def.env(tokens))
	if err != nil {
		c.logger.Error("tool operation failed", "service", service, "operation", operation, "err", err)
		return nil, err
	}
	return result, nil
}

// Connect saves the supplied tokens and immediately verifies them with the
// service's low-risk probe operation. On probe failure the just-saved
// tokens are deleted again (compensating rollback) and the probe error is
// returned.
func (c *Client) Connect(ctx context.Context, userID, service string, tokens map[string]string) error {
	def, ok := services[service]
	if !ok {
		return fmt.Errorf("service %q: %w", service, domain.ErrNotRegistered)
	}

	if err := c.creds.Save(ctx, userID, service, tokens); err != nil {
		return fmt.Errorf("failed to save credentials for %q: %w", service, err)
	}

	if _, err := c.Execute(ctx, userID, service, def.probe.operation, def.probe.arguments); err != nil {
		if _, delErr := c.creds.Delete(ctx, userID, service); delErr != nil {
			c.logger.Error("credential rollback failed", "service", service, "user", userID, "err", delErr)
		}
		return fmt.Errorf("credential verification for %q failed: %w", service, err)
	}

	c.logger.Info("service connected", "service", service, "user", userID)
	return nil
}

// Disconnect removes the stored tokens, reporting whether any existed.
func (c *Client) Disconnect(ctx context.Context, userID, service string) (bool, error) {
	if _, ok := services[service]; !ok {
		return false, fmt.Errorf("service %q: %w", service, domain.ErrNotRegistered)
	}
	return c.creds.Delete(ctx, userID, service)
}

// Connections reports, per supported service, whether the user has stored
// credentials.
func (c *Client) Connections(ctx context.Context, userID string) (map[string]bool, error) {
	names := Services()
	sort.Strings(names)

	out := make(map[string]bool, len(names))
	for _, name := range names {
		_, err := c.creds.Load(ctx, userID, name)
		switch {
		case err == nil:
			out[name] = true
		case errors.Is(err, domain.ErrMissingCredentials):
			out[name] = false
		default:
			return nil, fmt.Errorf("failed to check connection for %q: %w", name, err)
		}
	}
	return out, nil
}
