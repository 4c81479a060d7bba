package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
	"github.com/aretw0/toolgate/pkg/ports"
)

const (
	defaultStopGrace       = 5 * time.Second
	defaultExchangeTimeout = 60 * time.Second
)

// Observer is notified after every exchange with a tool server.
type Observer func(server, outcome string, elapsed time.Duration)

// entry pairs a descriptor with its live handle, if any.
type entry struct {
	desc    Descriptor
	handle  *handle // nil when not running
	lastErr string

	// sendMu serialises start/stop/exchange per server name, so concurrent
	// callers never interleave writes and reads on the shared stdio pipe.
	sendMu sync.Mutex
}

// Orchestrator owns the registry of tool server descriptors and their live
// process handles. All registry mutation goes through its mutex.
type Orchestrator struct {
	mu      sync.Mutex
	servers map[string]*entry

	logger          *slog.Logger
	stream          ports.StreamClient
	observe         Observer
	stopGrace       time.Duration
	exchangeTimeout time.Duration
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithStreamClient provides the SSE transport for sse-type descriptors.
func WithStreamClient(c ports.StreamClient) Option {
	return func(o *Orchestrator) { o.stream = c }
}

// WithObserver registers a per-exchange callback (e.g. metrics recording).
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// WithStopGrace overrides the graceful-stop window before SIGKILL.
func WithStopGrace(d time.Duration) Option {
	return func(o *Orchestrator) { o.stopGrace = d }
}

// WithExchangeTimeout overrides the default reply deadline per exchange.
func WithExchangeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.exchangeTimeout = d }
}

// New creates an empty Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		servers:         make(map[string]*entry),
		logger:          logging.NewNop(),
		stopGrace:       defaultStopGrace,
		exchangeTimeout: defaultExchangeTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register adds a descriptor to the registry.
// Returns domain.ErrAlreadyRegistered if the name is taken.
func (o *Orchestrator) Register(desc Descriptor) error {
	if err := desc.validate(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.servers[desc.Name]; exists {
		return fmt.Errorf("%q: %w", desc.Name, domain.ErrAlreadyRegistered)
	}
	o.servers[desc.Name] = &entry{desc: desc}
	o.logger.Info("tool server registered", "server", desc.Name, "transport", desc.Transport)
	return nil
}

// Names returns the registered server names, sorted.
func (o *Orchestrator) Names() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.servers))
	for name := range o.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the named server if it is not already running.
// Starting a running server is a no-op. The overlay is merged over the
// descriptor env for this spawn only; the descriptor itself never changes.
func (o *Orchestrator) Start(ctx context.Context, name string, overlay map[string]string) error {
	e, err := o.entry(name)
	if err != nil {
		return err
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	_, err = o.ensureStarted(e, overlay)
	return err
}

// Stop terminates the named server: SIGTERM, bounded grace, then SIGKILL.
// Stopping a non-running server succeeds.
func (o *Orchestrator) Stop(ctx context.Context, name string) error {
	e, err := o.entry(name)
	if err != nil {
		return err
	}

	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	o.mu.Lock()
	h := e.handle
	o.mu.Unlock()
	if h == nil {
		return nil
	}

	o.logger.Info("stopping tool server", "server", name, "pid", h.pid)
	stopErr := h.terminate(o.stopGrace)
	o.clearHandle(e, h, "")
	return stopErr
}

// StartAll starts every registered server, best effort. A failure on one
// name does not stop the fan-out; the result map holds one entry per name.
func (o *Orchestrator) StartAll(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, name := range o.Names() {
		results[name] = o.Start(ctx, name, nil)
	}
	return results
}

// StopAll stops every registered server, best effort.
func (o *Orchestrator) StopAll(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, name := range o.Names() {
		results[name] = o.Stop(ctx, name)
	}
	return results
}

// ServerStatus describes one registered server.
type ServerStatus struct {
	Running   bool      `json:"running"`
	Transport Transport `json:"transport"`
	LastError string    `json:"last_error,omitempty"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Status reports every registered server.
func (o *Orchestrator) Status() map[string]ServerStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]ServerStatus, len(o.servers))
	for name, e := range o.servers {
		st := ServerStatus{
			Transport: e.desc.Transport,
			LastError: e.lastErr,
		}
		if e.handle != nil {
			st.Running = true
			st.PID = e.handle.pid
			st.StartedAt = e.handle.startedAt
		}
		out[name] = st
	}
	return out
}

// Send performs one request/response exchange with the named server,
// auto-starting it if needed. The overlay applies only when this call has to
// spawn the process. The reply is decoded as a single JSON value.
func (o *Orchestrator) Send(ctx context.Context, name string, req domain.CapabilityRequest, overlay map[string]string) (map[string]any, error) {
	e, err := o.entry(name)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := o.send(ctx, e, req, overlay)
	if o.observe != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		o.observe(name, outcome, time.Since(started))
	}
	return result, err
}

func (o *Orchestrator) send(ctx context.Context, e *entry, req domain.CapabilityRequest, overlay map[string]string) (map[string]any, error) {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if e.desc.Transport == TransportSSE {
		return o.sendSSE(ctx, e, req)
	}

	h, err := o.ensureStarted(e, overlay)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request for %q: %w", e.desc.Name, err)
	}

	line, err := h.exchange(ctx, payload, o.timeoutFor(e.desc))
	if err != nil {
		if errors.Is(err, domain.ErrProcessExited) {
			o.clearHandle(e, h, err.Error())
		} else {
			var te *domain.TransportError
			if errors.As(err, &te) && te.Op == "read" {
				// The reply stream is desynced; the process is unusable.
				h.kill()
				o.clearHandle(e, h, err.Error())
			}
		}
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(line, &result); err != nil {
		return nil, &domain.DecodeError{Server: e.desc.Name, Payload: string(line), Err: err}
	}
	return result, nil
}

func (o *Orchestrator) sendSSE(ctx context.Context, e *entry, req domain.CapabilityRequest) (map[string]any, error) {
	if o.stream == nil {
		return nil, &domain.TransportError{Server: e.desc.Name, Op: "exchange", Err: fmt.Errorf("no SSE client configured")}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(req.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("failed to decode arguments for %q: %w", e.desc.Name, err)
	}

	msg := domain.NewUserMessage(
		fmt.Sprintf("Execute %s", req.Function.Name),
		map[string]any{"capability": req.Function.Name, "params": args},
	)

	reply, err := o.stream.Exchange(ctx, e.desc.URL, msg)
	if err != nil {
		o.setLastError(e, err.Error())
		return nil, err
	}
	if reply.Role == domain.RoleError {
		err := &domain.TransportError{Server: e.desc.Name, Op: "exchange", Err: errors.New(reply.Content.Text)}
		o.setLastError(e, err.Error())
		return nil, err
	}

	raw, err := json.Marshal(reply)
	if err != nil {
		return nil, &domain.DecodeError{Server: e.desc.Name, Err: err}
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &domain.DecodeError{Server: e.desc.Name, Err: err}
	}
	return result, nil
}

// ensureStarted spawns the process if no handle is live.
// Caller must hold e.sendMu.
func (o *Orchestrator) ensureStarted(e *entry, overlay map[string]string) (*handle, error) {
	if e.desc.Transport == TransportSSE {
		return nil, nil
	}

	o.mu.Lock()
	h := e.handle
	o.mu.Unlock()
	if h != nil {
		return h, nil
	}

	h, err := spawn(e.desc, overlay, o.logger)
	if err != nil {
		o.setLastError(e, err.Error())
		return nil, err
	}

	o.mu.Lock()
	e.handle = h
	e.lastErr = ""
	o.mu.Unlock()
	return h, nil
}

// clearHandle drops the live handle if it is still the current one.
func (o *Orchestrator) clearHandle(e *entry, h *handle, lastErr string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e.handle == h {
		e.handle = nil
		if lastErr != "" {
			e.lastErr = lastErr
		}
	}
}

func (o *Orchestrator) setLastError(e *entry, msg string) {
	o.mu.Lock()
	e.lastErr = msg
	o.mu.Unlock()
}

func (o *Orchestrator) entry(name string) (*entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.servers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrNotRegistered)
	}
	return e, nil
}

func (o *Orchestrator) timeoutFor(desc Descriptor) time.Duration {
	if desc.ExchangeTimeout > 0 {
		return desc.ExchangeTimeout
	}
	return o.exchangeTimeout
}
