package orchestrator

import (
	"fmt"
	"time"
)

// Transport selects how the orchestrator talks to a tool server.
type Transport string

const (
	// TransportStdio exchanges one JSON line per request/response over the
	// child process's standard streams.
	TransportStdio Transport = "stdio"

	// TransportSSE posts to an HTTP endpoint and consumes a text/event-stream
	// reply. SSE servers are remote; no child process is spawned for them.
	TransportSSE Transport = "sse"
)

// Descriptor is the static configuration for one tool server.
// It is immutable after registration: per-call credentials are passed as an
// environment overlay at start time, never written back into Env.
type Descriptor struct {
	// Name is the unique registry key for this server.
	Name string

	// Command is the argv used to spawn the child process (stdio transport).
	Command []string

	// Env is the default environment for the child process. Values here are
	// merged over the parent environment; caller overlays win over both.
	Env map[string]string

	// Transport is stdio or sse.
	Transport Transport

	// URL is the endpoint for SSE servers.
	URL string

	// ExchangeTimeout bounds one request/response exchange. Zero means the
	// orchestrator default applies.
	ExchangeTimeout time.Duration
}

func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	switch d.Transport {
	case TransportStdio:
		if len(d.Command) == 0 {
			return fmt.Errorf("stdio descriptor %q has no launch command", d.Name)
		}
	case TransportSSE:
		if d.URL == "" {
			return fmt.Errorf("sse descriptor %q has no URL", d.Name)
		}
	default:
		return fmt.Errorf("descriptor %q has unknown transport %q", d.Name, d.Transport)
	}
	return nil
}
