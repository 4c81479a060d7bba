package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
)

// Client speaks the SSE side of the tool server protocol: POST a message,
// read the event stream, return the first message or error payload.
// The stream is finite and not restartable; a trailing "end" event is
// tolerated but not required.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates an SSE client with a 60s overall timeout by default.
func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange posts msg to url and consumes the stream until the first
// meaningful payload. Error-role payloads are returned as a Message with
// RoleError, not as a Go error; transport failures are TransportErrors.
func (c *Client) Exchange(ctx context.Context, url string, msg domain.Message) (domain.Message, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, &domain.TransportError{Server: url, Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Message{}, &domain.TransportError{Server: url, Op: "connect", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.Message{}, &domain.TransportError{
			Server: url,
			Op:     "connect",
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}

	return c.consume(url, resp.Body)
}

// consume runs the event-stream state machine: track the current event
// name, and on each data line decide whether it completes the exchange.
func (c *Client) consume(url string, body io.Reader) (domain.Message, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := ""
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			event = ""
			continue
		}

		if name, ok := strings.CutPrefix(line, "event:"); ok {
			event = strings.TrimSpace(name)
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		switch event {
		case "end":
			// Completion marker without a payload for us.
			continue
		case "message", "error":
			// Handled below.
		default:
			// Some servers omit the event line; infer the kind from the payload.
			event = inferEvent(data)
			if event == "" {
				continue
			}
		}

		var reply domain.Message
		if err := json.Unmarshal([]byte(data), &reply); err != nil {
			c.logger.Warn("discarding unparseable SSE payload", "url", url, "err", err)
			continue
		}
		if event == "error" && reply.Role != domain.RoleError {
			reply.Role = domain.RoleError
		}
		return reply, nil
	}

	if err := scanner.Err(); err != nil {
		return domain.Message{}, &domain.TransportError{Server: url, Op: "read", Err: err}
	}
	return domain.Message{}, &domain.TransportError{Server: url, Op: "read", Err: fmt.Errorf("stream ended without a payload")}
}

func inferEvent(data string) string {
	var probe struct {
		Role string `json:"role"`
	}
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return ""
	}
	if probe.Role == string(domain.RoleError) {
		return "error"
	}
	return "message"
}
