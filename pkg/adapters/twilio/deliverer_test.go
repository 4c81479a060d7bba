package twilio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	lastService string
	lastOp      string
	lastArgs    map[string]any
	err         error
}

func (f *fakeCaller) Execute(_ context.Context, _, service, operation string, args map[string]any) (map[string]any, error) {
	f.lastService = service
	f.lastOp = operation
	f.lastArgs = args
	return map[string]any{}, f.err
}

func TestDeliverer_Deliver(t *testing.T) {
	ctx := context.Background()

	t.Run("Routes Through The Twilio Server", func(t *testing.T) {
		caller := &fakeCaller{}
		d := New(caller)

		require.NoError(t, d.Deliver(ctx, "+525511112222", "hola"))
		assert.Equal(t, "twilio", caller.lastService)
		assert.Equal(t, "send_whatsapp_message", caller.lastOp)
		assert.Equal(t, "whatsapp:+525511112222", caller.lastArgs["to"])
		assert.Equal(t, "hola", caller.lastArgs["body"])
	})

	t.Run("Keeps Existing Channel Prefix", func(t *testing.T) {
		caller := &fakeCaller{}
		require.NoError(t, New(caller).Deliver(ctx, "whatsapp:+52555", "hola"))
		assert.Equal(t, "whatsapp:+52555", caller.lastArgs["to"])
	})

	t.Run("Wraps Tool Errors", func(t *testing.T) {
		caller := &fakeCaller{err: errors.New("twilio 500")}
		err := New(caller).Deliver(ctx, "+52555", "hola")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "+52555")
	})
}
