package domain

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned when a server name is not in the registry.
var ErrNotRegistered = errors.New("tool server not registered")

// ErrAlreadyRegistered is returned when registering a duplicate server name.
var ErrAlreadyRegistered = errors.New("tool server already registered")

// ErrProcessExited is returned when a tool server closes its stdout before
// writing a reply.
var ErrProcessExited = errors.New("tool server process exited")

// ErrMissingCredentials is returned when no tokens are stored for a
// (user, service) pair.
var ErrMissingCredentials = errors.New("no stored credentials for user and service")

// ErrInterpretation is returned when the LLM call failed or produced
// unparseable JSON.
var ErrInterpretation = errors.New("command interpretation failed")

// SpawnError wraps an OS-level failure to start a tool server process.
type SpawnError struct {
	Server string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn tool server %q: %v", e.Server, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// DecodeError wraps malformed JSON received from a tool server.
type DecodeError struct {
	Server  string
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed reply from tool server %q: %v", e.Server, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError wraps a network or IPC failure while talking to a tool server.
type TransportError struct {
	Server string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure on tool server %q during %s: %v", e.Server, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
