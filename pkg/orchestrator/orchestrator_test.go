package orchestrator

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/toolgate/pkg/domain"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive sh-based child processes")
	}
}

// echoDescriptor returns a server that answers every request line with the
// same line, which is valid JSON for our framing.
func echoDescriptor(name string) Descriptor {
	return Descriptor{
		Name:      name,
		Command:   []string{"cat"},
		Transport: TransportStdio,
	}
}

func mustRequest(t *testing.T, name string, args map[string]any) domain.CapabilityRequest {
	t.Helper()
	req, err := domain.NewCapabilityRequest(name, args)
	require.NoError(t, err)
	return req
}

func TestOrchestrator_Register(t *testing.T) {
	o := New()

	require.NoError(t, o.Register(echoDescriptor("echo")))

	t.Run("Rejects Duplicate Names", func(t *testing.T) {
		err := o.Register(echoDescriptor("echo"))
		assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
	})

	t.Run("Rejects Invalid Descriptors", func(t *testing.T) {
		err := o.Register(Descriptor{Name: "broken", Transport: TransportStdio})
		assert.Error(t, err)

		err = o.Register(Descriptor{Name: "weird", Transport: Transport("carrier-pigeon")})
		assert.Error(t, err)
	})

	t.Run("Names Are Sorted", func(t *testing.T) {
		require.NoError(t, o.Register(echoDescriptor("alpha")))
		assert.Equal(t, []string{"alpha", "echo"}, o.Names())
	})
}

func TestOrchestrator_Send(t *testing.T) {
	skipOnWindows(t)

	o := New()
	require.NoError(t, o.Register(echoDescriptor("echo")))
	ctx := context.Background()

	t.Run("Round Trips One JSON Line", func(t *testing.T) {
		result, err := o.Send(ctx, "echo", mustRequest(t, "probe", map[string]any{"k": "v"}), nil)
		require.NoError(t, err)

		// cat echoes the request envelope back verbatim.
		assert.Equal(t, "function", result["type"])
		fn, ok := result["function"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "probe", fn["name"])
	})

	t.Run("Auto Start Marks Server Running", func(t *testing.T) {
		st := o.Status()["echo"]
		assert.True(t, st.Running)
		assert.NotZero(t, st.PID)
		assert.False(t, st.StartedAt.IsZero())
	})

	t.Run("Unregistered Server", func(t *testing.T) {
		_, err := o.Send(ctx, "ghost", mustRequest(t, "probe", nil), nil)
		assert.ErrorIs(t, err, domain.ErrNotRegistered)
	})

	require.NoError(t, o.Stop(ctx, "echo"))
}

func TestOrchestrator_EnvOverlay(t *testing.T) {
	skipOnWindows(t)

	o := New()
	desc := Descriptor{
		Name:      "env",
		Command:   []string{"sh", "-c", `read line; printf '{"token":"%s"}\n' "$TG_TOKEN"`},
		Env:       map[string]string{"TG_TOKEN": "from-descriptor"},
		Transport: TransportStdio,
	}
	require.NoError(t, o.Register(desc))
	ctx := context.Background()

	result, err := o.Send(ctx, "env", mustRequest(t, "probe", nil), map[string]string{"TG_TOKEN": "from-overlay"})
	require.NoError(t, err)
	assert.Equal(t, "from-overlay", result["token"])

	// The overlay must not stick to the shared descriptor.
	assert.Equal(t, "from-descriptor", desc.Env["TG_TOKEN"])
}

func TestOrchestrator_StartStop(t *testing.T) {
	skipOnWindows(t)

	o := New(WithStopGrace(time.Second))
	require.NoError(t, o.Register(Descriptor{
		Name:      "sleeper",
		Command:   []string{"sh", "-c", "while read line; do echo '{}'; done"},
		Transport: TransportStdio,
	}))
	ctx := context.Background()

	require.NoError(t, o.Start(ctx, "sleeper", nil))
	firstPID := o.Status()["sleeper"].PID
	require.NotZero(t, firstPID)

	t.Run("Start Is Idempotent", func(t *testing.T) {
		require.NoError(t, o.Start(ctx, "sleeper", nil))
		assert.Equal(t, firstPID, o.Status()["sleeper"].PID)
	})

	t.Run("Stop Clears The Handle", func(t *testing.T) {
		require.NoError(t, o.Stop(ctx, "sleeper"))
		st := o.Status()["sleeper"]
		assert.False(t, st.Running)
		assert.Zero(t, st.PID)
	})

	t.Run("Stop Is Idempotent", func(t *testing.T) {
		assert.NoError(t, o.Stop(ctx, "sleeper"))
	})
}

func TestOrchestrator_ProcessExit(t *testing.T) {
	skipOnWindows(t)

	o := New()
	require.NoError(t, o.Register(Descriptor{
		Name:      "oneshot",
		Command:   []string{"sh", "-c", "read line; exit 0"},
		Transport: TransportStdio,
	}))
	ctx := context.Background()

	_, err := o.Send(ctx, "oneshot", mustRequest(t, "probe", nil), nil)
	require.ErrorIs(t, err, domain.ErrProcessExited)

	st := o.Status()["oneshot"]
	assert.False(t, st.Running)
	assert.NotEmpty(t, st.LastError)
}

func TestOrchestrator_ExchangeTimeout(t *testing.T) {
	skipOnWindows(t)

	o := New()
	require.NoError(t, o.Register(Descriptor{
		Name:            "stuck",
		Command:         []string{"sh", "-c", "read line; sleep 30"},
		Transport:       TransportStdio,
		ExchangeTimeout: 200 * time.Millisecond,
	}))
	ctx := context.Background()

	_, err := o.Send(ctx, "stuck", mustRequest(t, "probe", nil), nil)
	require.Error(t, err)

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)

	// The desynced process was killed and the handle dropped.
	assert.False(t, o.Status()["stuck"].Running)
}

func TestOrchestrator_BadReplyPayload(t *testing.T) {
	skipOnWindows(t)

	o := New()
	require.NoError(t, o.Register(Descriptor{
		Name:      "garbage",
		Command:   []string{"sh", "-c", "read line; echo 'not json'"},
		Transport: TransportStdio,
	}))
	ctx := context.Background()

	_, err := o.Send(ctx, "garbage", mustRequest(t, "probe", nil), nil)
	require.Error(t, err)

	var de *domain.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "garbage", de.Server)
	assert.Contains(t, de.Payload, "not json")
}

func TestOrchestrator_Observer(t *testing.T) {
	skipOnWindows(t)

	var seen []string
	o := New(WithObserver(func(server, outcome string, _ time.Duration) {
		seen = append(seen, server+":"+outcome)
	}))
	require.NoError(t, o.Register(echoDescriptor("echo")))
	ctx := context.Background()

	_, err := o.Send(ctx, "echo", mustRequest(t, "probe", nil), nil)
	require.NoError(t, err)
	require.NoError(t, o.Stop(ctx, "echo"))

	assert.Equal(t, []string{"echo:ok"}, seen)
}

func TestOrchestrator_SSEWithoutClient(t *testing.T) {
	o := New()
	require.NoError(t, o.Register(Descriptor{
		Name:      "remote",
		Transport: TransportSSE,
		URL:       "http://localhost:9999/mcp",
	}))

	_, err := o.Send(context.Background(), "remote", mustRequest(t, "probe", nil), nil)
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "remote", te.Server)
}
