package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/toolgate/pkg/domain"
)

// handle owns one live child process and its standard streams.
// There is at most one handle per server name; the orchestrator swaps the
// field under its registry lock.
type handle struct {
	name      string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	pid       int
	startedAt time.Time

	// done is closed by the reaper goroutine once Wait returns.
	done    chan struct{}
	waitErr error
}

// spawn starts the descriptor's command with the merged environment:
// parent environment, then descriptor env, then the per-call overlay.
func spawn(desc Descriptor, overlay map[string]string, logger *slog.Logger) (*handle, error) {
	cmd := exec.Command(desc.Command[0], desc.Command[1:]...)
	cmd.Env = mergeEnv(os.Environ(), desc.Env, overlay)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &domain.SpawnError{Server: desc.Name, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.SpawnError{Server: desc.Name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &domain.SpawnError{Server: desc.Name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &domain.SpawnError{Server: desc.Name, Err: err}
	}

	h := &handle{
		name:      desc.Name,
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReader(stdout),
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}

	// Forward the child's stderr line by line so diagnostics land in our log.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				logger.Warn("tool server stderr", "server", desc.Name, "line", line)
			}
		}
	}()

	// Reap the process so exits are observed even with no exchange in flight.
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	logger.Info("tool server started", "server", desc.Name, "pid", h.pid)
	return h, nil
}

// exchange writes one JSON line to stdin and reads exactly one JSON line from
// stdout. The read is bounded by timeout; a hung child cannot block forever.
func (h *handle) exchange(ctx context.Context, payload []byte, timeout time.Duration) ([]byte, error) {
	if _, err := h.stdin.Write(append(payload, '\n')); err != nil {
		if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, syscall.EPIPE) {
			return nil, domain.ErrProcessExited
		}
		return nil, &domain.TransportError{Server: h.name, Op: "write", Err: err}
	}

	type readResult struct {
		line []byte
		err  error
	}
	resCh := make(chan readResult, 1)
	go func() {
		line, err := h.stdout.ReadBytes('\n')
		resCh <- readResult{line: line, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, &domain.TransportError{Server: h.name, Op: "read", Err: ctx.Err()}
	case <-timer.C:
		return nil, &domain.TransportError{Server: h.name, Op: "read", Err: fmt.Errorf("no reply within %s", timeout)}
	case res := <-resCh:
		if res.err != nil {
			if errors.Is(res.err, io.EOF) || errors.Is(res.err, io.ErrUnexpectedEOF) {
				return nil, domain.ErrProcessExited
			}
			return nil, &domain.TransportError{Server: h.name, Op: "read", Err: res.err}
		}
		return res.line, nil
	}
}

// terminate asks the process to exit, escalating to SIGKILL after grace.
func (h *handle) terminate(grace time.Duration) error {
	_ = h.stdin.Close()
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		<-h.done
		return nil
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
		if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("failed to kill tool server %q: %w", h.name, err)
		}
		<-h.done
		return nil
	}
}

// kill forcibly ends the process. Used when an exchange timed out and the
// stream can no longer be trusted to stay in sync.
func (h *handle) kill() {
	_ = h.cmd.Process.Kill()
	<-h.done
}

// mergeEnv layers maps of KEY=VALUE over a base environment; later wins.
func mergeEnv(base []string, layers ...map[string]string) []string {
	merged := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			if _, seen := merged[k]; !seen {
				order = append(order, k)
			}
			merged[k] = v
		}
	}
	env := make([]string, 0, len(order))
	for _, k := range order {
		env = append(env, k+"="+merged[k])
	}
	return env
}
