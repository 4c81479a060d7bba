// Package httpapi exposes the gateway over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
	"github.com/aretw0/toolgate/pkg/executor"
	"github.com/aretw0/toolgate/pkg/orchestrator"
)

// ToolClient is the credential and execution surface the API exposes.
type ToolClient interface {
	Connect(ctx context.Context, userID, service string, tokens map[string]string) error
	Disconnect(ctx context.Context, userID, service string) (bool, error)
	Connections(ctx context.Context, userID string) (map[string]bool, error)
	Execute(ctx context.Context, userID, service, operation string, args map[string]any) (map[string]any, error)
}

// StatusReporter reports the managed tool servers.
type StatusReporter interface {
	Status() map[string]orchestrator.ServerStatus
}

// MessageHandler runs one incoming user message through the pipeline.
type MessageHandler interface {
	HandleIncoming(ctx context.Context, from, body string) (*executor.Result, error)
}

// Server bundles the HTTP handlers.
type Server struct {
	tools    ToolClient
	status   StatusReporter
	messages MessageHandler
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithGatherer sets the Prometheus gatherer served at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates the API server.
func New(tools ToolClient, status StatusReporter, messages MessageHandler, opts ...Option) *Server {
	s := &Server{
		tools:    tools,
		status:   status,
		messages: messages,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Post("/connect/{service}", s.handleConnect)
	r.Delete("/connect/{service}", s.handleDisconnect)
	r.Get("/connections", s.handleConnections)
	r.Post("/execute/{service}", s.handleExecute)
	r.Post("/messages", s.handleMessage)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

type connectRequest struct {
	UserID string            `json:"user_id"`
	Tokens map[string]string `json:"tokens"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || len(req.Tokens) == 0 {
		writeError(w, http.StatusBadRequest, "user_id and tokens are required")
		return
	}

	if err := s.tools.Connect(r.Context(), req.UserID, service, req.Tokens); err != nil {
		s.logger.Warn("connect failed", "service", service, "user", req.UserID, "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": service, "connected": true})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	existed, err := s.tools.Disconnect(r.Context(), userID, service)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": service, "removed": existed})
}

func (s *Server) handleConnections(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	connections, err := s.tools.Connections(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, connections)
}

type executeRequest struct {
	UserID    string         `json:"user_id"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Operation == "" {
		writeError(w, http.StatusBadRequest, "user_id and operation are required")
		return
	}

	result, err := s.tools.Execute(r.Context(), req.UserID, service, req.Operation, req.Arguments)
	if err != nil {
		s.logger.Warn("execute failed", "service", service, "operation", req.Operation, "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type messageRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "from and body are required")
		return
	}

	result, err := s.messages.HandleIncoming(r.Context(), req.From, req.Body)
	if err != nil {
		s.logger.Error("message handling failed", "from", req.From, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
