package interpreter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/toolgate/pkg/domain"
)

// fakeCaller replays one canned model response.
type fakeCaller struct {
	lastService string
	lastOp      string
	lastArgs    map[string]any
	response    string
	err         error
}

func (f *fakeCaller) Execute(_ context.Context, _, service, operation string, args map[string]any) (map[string]any, error) {
	f.lastService = service
	f.lastOp = operation
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"text": f.response}, nil
}

func TestInterpreter_Interpret(t *testing.T) {
	ctx := context.Background()

	t.Run("Classifies Generate Text", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"generate_text","parameters":{"topic":"el mar"}}`}
		interp := New(caller)

		cmd := interp.Interpret(ctx, "Genera un texto sobre el mar")
		require.NoError(t, cmd.Err)
		assert.Equal(t, domain.CommandGenerateText, cmd.Command)
		assert.Equal(t, "el mar", cmd.Parameters["topic"])

		// The classification ran through the openai server with the user text embedded.
		assert.Equal(t, "openai", caller.lastService)
		assert.Equal(t, "generate_text", caller.lastOp)
		prompt, _ := caller.lastArgs["prompt"].(string)
		assert.Contains(t, prompt, "Genera un texto sobre el mar")
	})

	t.Run("Strips Markdown Fences", func(t *testing.T) {
		caller := &fakeCaller{response: "```json\n{\"command\":\"search_keywords\",\"parameters\":{\"topic\":\"seo\"}}\n```"}
		cmd := New(caller).Interpret(ctx, "dame keywords de seo")
		require.NoError(t, cmd.Err)
		assert.Equal(t, domain.CommandSearchKeywords, cmd.Command)
	})

	t.Run("Carries Secondary Email Action", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"generate_text","parameters":{"topic":"ventas"},"secondary_action":"send_email","secondary_parameters":{"to_address":"ana@example.com","subject":"Informe"}}`}
		cmd := New(caller).Interpret(ctx, "Genera un informe de ventas y mándalo a ana@example.com")
		require.NoError(t, cmd.Err)
		assert.Equal(t, domain.SecondarySendEmail, cmd.SecondaryAction)
		assert.Equal(t, "ana@example.com", cmd.SecondaryParameters["to_address"])
	})

	t.Run("Infers Email Fallback", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"generate_text","parameters":{"topic":"el mar"}}`}
		cmd := New(caller).Interpret(ctx, "Genera un poema sobre el mar y envíalo a ana@example.com")
		require.NoError(t, cmd.Err)
		assert.Equal(t, domain.SecondarySendEmail, cmd.SecondaryAction)
		assert.Equal(t, "ana@example.com", cmd.SecondaryParameters["to_address"])
	})

	t.Run("No Fallback Without An Address", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"generate_text","parameters":{"topic":"el mar"}}`}
		cmd := New(caller).Interpret(ctx, "Genera un poema sobre el mar")
		require.NoError(t, cmd.Err)
		assert.Empty(t, cmd.SecondaryAction)
	})

	t.Run("Fallback Does Not Override Model Secondary Action", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"generate_text","parameters":{"topic":"ventas"},"secondary_action":"send_email","secondary_parameters":{"to_address":"jefe@example.com"}}`}
		cmd := New(caller).Interpret(ctx, "Genera un informe y mándalo a jefe@example.com con copia a otro@example.com")
		require.NoError(t, cmd.Err)
		assert.Equal(t, "jefe@example.com", cmd.SecondaryParameters["to_address"])
	})

	t.Run("Model Failure Degrades To Unknown", func(t *testing.T) {
		caller := &fakeCaller{err: errors.New("rate limited")}
		cmd := New(caller).Interpret(ctx, "haz algo")
		assert.Equal(t, domain.CommandUnknown, cmd.Command)
		assert.ErrorIs(t, cmd.Err, domain.ErrInterpretation)
	})

	t.Run("Fallback Applies When The Model Call Fails", func(t *testing.T) {
		caller := &fakeCaller{err: errors.New("rate limited")}
		cmd := New(caller).Interpret(ctx, "Genera un texto y envíalo a ana@example.com")
		assert.Equal(t, domain.CommandUnknown, cmd.Command)
		assert.ErrorIs(t, cmd.Err, domain.ErrInterpretation)
		assert.Equal(t, domain.SecondarySendEmail, cmd.SecondaryAction)
		assert.Equal(t, "ana@example.com", cmd.SecondaryParameters["to_address"])
	})

	t.Run("Fallback Applies To Unparseable Responses", func(t *testing.T) {
		caller := &fakeCaller{response: "claro, con gusto"}
		cmd := New(caller).Interpret(ctx, "haz un resumen para luis@example.com")
		assert.Equal(t, domain.CommandUnknown, cmd.Command)
		assert.Equal(t, domain.SecondarySendEmail, cmd.SecondaryAction)
		assert.Equal(t, "luis@example.com", cmd.SecondaryParameters["to_address"])
	})

	t.Run("Unparseable Response Degrades To Unknown", func(t *testing.T) {
		caller := &fakeCaller{response: "claro, con gusto te ayudo"}
		cmd := New(caller).Interpret(ctx, "haz algo")
		assert.Equal(t, domain.CommandUnknown, cmd.Command)
		assert.ErrorIs(t, cmd.Err, domain.ErrInterpretation)
	})

	t.Run("Unlisted Command Maps To Unknown", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"order_pizza","parameters":{}}`}
		cmd := New(caller).Interpret(ctx, "pide una pizza")
		require.NoError(t, cmd.Err)
		assert.Equal(t, domain.CommandUnknown, cmd.Command)
	})

	t.Run("Model Option Reaches The Call", func(t *testing.T) {
		caller := &fakeCaller{response: `{"command":"unknown","parameters":{}}`}
		New(caller, WithModel("gpt-4o")).Interpret(ctx, "hola")
		assert.Equal(t, "gpt-4o", caller.lastArgs["model"])
	})
}

func TestExtractText(t *testing.T) {
	cases := []struct {
		name   string
		result map[string]any
		want   string
		ok     bool
	}{
		{"Flat Text", map[string]any{"text": "hola"}, "hola", true},
		{"Nested Content", map[string]any{"content": map[string]any{"text": "hola"}}, "hola", true},
		{"Result Field", map[string]any{"result": "hola"}, "hola", true},
		{"OpenAI Choices", map[string]any{"choices": []any{map[string]any{"message": map[string]any{"content": "hola"}}}}, "hola", true},
		{"Empty", map[string]any{}, "", false},
		{"Wrong Types", map[string]any{"text": 42}, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractText(tc.result)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
