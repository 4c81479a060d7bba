package toolgate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/toolgate/pkg/config"
	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/adapters/credfile"
	"github.com/aretw0/toolgate/pkg/adapters/credredis"
	"github.com/aretw0/toolgate/pkg/adapters/mailer"
	"github.com/aretw0/toolgate/pkg/adapters/sse"
	"github.com/aretw0/toolgate/pkg/adapters/twilio"
	"github.com/aretw0/toolgate/pkg/executor"
	"github.com/aretw0/toolgate/pkg/interpreter"
	"github.com/aretw0/toolgate/pkg/observability"
	"github.com/aretw0/toolgate/pkg/orchestrator"
	"github.com/aretw0/toolgate/pkg/ports"
	"github.com/aretw0/toolgate/pkg/toolclient"
)

// Version is the library version reported by the CLI and the MCP surface.
const Version = "0.1.0"

// Gateway is the high-level entry point for the Toolgate library.
// It wires the orchestrator, the credential store, the command pipeline,
// and the outbound channels together from a single configuration.
type Gateway struct {
	orch     *orchestrator.Orchestrator
	tools    *toolclient.Client
	exec     *executor.Executor
	creds    ports.CredentialStore
	metrics  *observability.Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
}

// Option configures the Gateway.
type Option func(*gatewayConfig)

type gatewayConfig struct {
	logger   *slog.Logger
	creds    ports.CredentialStore
	deliver  ports.Deliverer
	mail     ports.Mailer
	registry *prometheus.Registry
}

// WithLogger sets the structured logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *gatewayConfig) { c.logger = logger }
}

// WithCredentialStore overrides the store chosen from the configuration.
func WithCredentialStore(store ports.CredentialStore) Option {
	return func(c *gatewayConfig) { c.creds = store }
}

// WithDeliverer overrides the WhatsApp delivery channel.
func WithDeliverer(d ports.Deliverer) Option {
	return func(c *gatewayConfig) { c.deliver = d }
}

// WithMailer overrides the outbound email channel.
func WithMailer(m ports.Mailer) Option {
	return func(c *gatewayConfig) { c.mail = m }
}

// WithRegistry sets the Prometheus registry metrics land on.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *gatewayConfig) { c.registry = reg }
}

// New builds a Gateway from cfg. The credential store defaults to the
// file store under cfg.CredentialDir and switches to Redis when
// cfg.Redis.Addr is set.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	gc := &gatewayConfig{
		logger:   logging.New(slog.LevelInfo),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(gc)
	}

	creds := gc.creds
	if creds == nil {
		if cfg.Redis.Addr != "" {
			creds = credredis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				credredis.WithTTL(cfg.Redis.CredentialTTL()))
		} else {
			creds = credfile.New(cfg.CredentialDir)
		}
	}

	metrics := observability.NewMetrics(gc.registry)

	orch := orchestrator.New(
		orchestrator.WithLogger(gc.logger),
		orchestrator.WithStreamClient(sse.New(sse.WithLogger(gc.logger))),
		orchestrator.WithObserver(metrics.ObserveExchange),
	)
	for _, sv := range cfg.Servers {
		desc := orchestrator.Descriptor{
			Name:            sv.Name,
			Command:         sv.Command,
			Env:             sv.Env,
			Transport:       orchestrator.Transport(sv.Transport),
			URL:             sv.URL,
			ExchangeTimeout: sv.ExchangeTimeout(),
		}
		if err := orch.Register(desc); err != nil {
			return nil, fmt.Errorf("failed to register server %q: %w", sv.Name, err)
		}
	}

	tools := toolclient.New(orch, creds, toolclient.WithLogger(gc.logger))

	deliver := gc.deliver
	if deliver == nil {
		deliver = twilio.New(tools,
			twilio.WithLogger(gc.logger),
			twilio.WithPlatformUser(cfg.PlatformUserID))
	}

	mail := gc.mail
	if mail == nil && cfg.Email.ServiceURL != "" {
		mail = mailer.New(cfg.Email.ServiceURL, cfg.Email.From, cfg.Email.FromName,
			mailer.WithLogger(gc.logger))
	}

	interp := interpreter.New(tools,
		interpreter.WithModel(cfg.Model),
		interpreter.WithPlatformUser(cfg.PlatformUserID),
		interpreter.WithLogger(gc.logger))

	execOpts := []executor.Option{
		executor.WithModel(cfg.Model),
		executor.WithPlatformUser(cfg.PlatformUserID),
		executor.WithObserver(metrics),
		executor.WithLogger(gc.logger),
	}
	if mail != nil {
		execOpts = append(execOpts, executor.WithMailer(mail))
	}
	exec := executor.New(interp, tools, deliver, execOpts...)

	return &Gateway{
		orch:     orch,
		tools:    tools,
		exec:     exec,
		creds:    creds,
		metrics:  metrics,
		registry: gc.registry,
		logger:   gc.logger,
	}, nil
}

// HandleIncoming runs one incoming WhatsApp message through the pipeline.
// The sender always gets an answer; the error reports delivery failures
// only.
func (g *Gateway) HandleIncoming(ctx context.Context, from, body string) (*executor.Result, error) {
	g.logger.Info("incoming message", "from", from, "bytes", len(body))
	return g.exec.Run(ctx, from, body)
}

// Tools exposes the credential and execution client.
func (g *Gateway) Tools() *toolclient.Client { return g.tools }

// Orchestrator exposes the tool server lifecycle manager.
func (g *Gateway) Orchestrator() *orchestrator.Orchestrator { return g.orch }

// Registry returns the Prometheus registry backing the gateway metrics.
func (g *Gateway) Registry() *prometheus.Registry { return g.registry }

// Shutdown stops every running tool server, honoring ctx for the overall
// deadline.
func (g *Gateway) Shutdown(ctx context.Context) error {
	done := make(chan map[string]error, 1)
	go func() { done <- g.orch.StopAll(ctx) }()

	select {
	case errs := <-done:
		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d tool servers failed to stop cleanly", failed)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted: %w", ctx.Err())
	}
}
