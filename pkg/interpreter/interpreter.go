// Package interpreter turns free-form user text into a structured command
// by asking a language model to classify it against a closed command set.
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
)

// Caller runs a single operation against the language-model tool server.
type Caller interface {
	Execute(ctx context.Context, userID, service, operation string, args map[string]any) (map[string]any, error)
}

const defaultModel = "gpt-4o-mini"

// instructions is the fixed classification prompt. The model must answer
// with a single JSON object and nothing else; everything outside the
// closed command set maps to "unknown".
const instructions = `Eres un clasificador de intenciones. Analiza el mensaje del usuario y responde UNICAMENTE con un objeto JSON, sin texto adicional, con esta forma:

{"command": "...", "parameters": {...}, "secondary_action": "...", "secondary_parameters": {...}}

Valores permitidos para "command":
- "generate_text": el usuario pide redactar un texto. parameters: {"topic": "<tema>"}.
- "search_keywords": el usuario pide palabras clave o SEO. parameters: {"topic": "<tema>"}.
- "send_whatsapp_message": el usuario pide enviar un WhatsApp. parameters: {"recipient_number": "<numero>", "message_text": "<texto>"}.
- "unknown": cualquier otra cosa. parameters: {}.

Si el usuario ademas pide enviar el resultado por correo, incluye "secondary_action": "send_email" y "secondary_parameters": {"to_address": "<correo>", "subject": "<asunto>"}. Si no, omite ambos campos o dejalos vacios.

Mensaje del usuario: `

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Interpreter classifies incoming messages via the openai tool server.
type Interpreter struct {
	caller Caller
	model  string
	userID string
	logger *slog.Logger
}

// Option configures the Interpreter.
type Option func(*Interpreter)

// WithModel overrides the model used for classification.
func WithModel(model string) Option {
	return func(i *Interpreter) { i.model = model }
}

// WithPlatformUser sets the credential-store user the interpreter bills
// its model calls to.
func WithPlatformUser(userID string) Option {
	return func(i *Interpreter) { i.userID = userID }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

// New creates an Interpreter on top of the given caller.
func New(caller Caller, opts ...Option) *Interpreter {
	i := &Interpreter{
		caller: caller,
		model:  defaultModel,
		userID: "platform",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret classifies text into an InterpretedCommand. Interpretation
// never fails hard: on model or parse errors the result carries
// CommandUnknown plus a wrapped error so the caller can still answer the
// user.
func (i *Interpreter) Interpret(ctx context.Context, text string) domain.InterpretedCommand {
	cmd := i.classify(ctx, text)
	i.applyEmailFallback(&cmd, text)
	return cmd
}

func (i *Interpreter) classify(ctx context.Context, text string) domain.InterpretedCommand {
	result, err := i.caller.Execute(ctx, i.userID, "openai", "generate_text", map[string]any{
		"prompt": instructions + text,
		"model":  i.model,
	})
	if err != nil {
		i.logger.Warn("intent classification call failed", "err", err)
		return unknownFor(fmt.Errorf("%w: %v", domain.ErrInterpretation, err))
	}

	raw, ok := ExtractText(result)
	if !ok {
		i.logger.Warn("intent classification returned no text", "result", result)
		return unknownFor(fmt.Errorf("%w: response carried no text", domain.ErrInterpretation))
	}

	cmd, err := parseResponse(raw)
	if err != nil {
		i.logger.Warn("intent classification unparseable", "raw", raw, "err", err)
		return unknownFor(fmt.Errorf("%w: %v", domain.ErrInterpretation, err))
	}
	return cmd
}

func unknownFor(err error) domain.InterpretedCommand {
	return domain.InterpretedCommand{
		Command:    domain.CommandUnknown,
		Parameters: map[string]any{},
		Err:        err,
	}
}

// applyEmailFallback scans the raw input whenever the model set no
// secondary action. It runs on every classification outcome, including
// degraded ones, so an address in the message is never silently dropped.
func (i *Interpreter) applyEmailFallback(cmd *domain.InterpretedCommand, text string) {
	if cmd.SecondaryAction != "" {
		return
	}
	addr := emailPattern.FindString(text)
	if addr == "" {
		return
	}
	cmd.SecondaryAction = domain.SecondarySendEmail
	cmd.SecondaryParameters = map[string]any{"to_address": addr}
	i.logger.Debug("secondary email action inferred", "to", addr)
}

func parseResponse(raw string) (domain.InterpretedCommand, error) {
	var payload struct {
		Command             string         `json:"command"`
		Parameters          map[string]any `json:"parameters"`
		SecondaryAction     string         `json:"secondary_action"`
		SecondaryParameters map[string]any `json:"secondary_parameters"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return domain.InterpretedCommand{}, fmt.Errorf("invalid classification payload: %w", err)
	}

	cmd := domain.InterpretedCommand{
		Command:             domain.ParseCommand(payload.Command),
		Parameters:          payload.Parameters,
		SecondaryParameters: payload.SecondaryParameters,
	}
	if cmd.Parameters == nil {
		cmd.Parameters = map[string]any{}
	}
	if payload.SecondaryAction == string(domain.SecondarySendEmail) {
		cmd.SecondaryAction = domain.SecondarySendEmail
	}
	return cmd, nil
}

// stripFences removes a markdown code fence the model may wrap the JSON in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractText pulls the generated text out of the tool server's reply,
// accommodating the handful of shapes the upstream servers use.
func ExtractText(result map[string]any) (string, bool) {
	if s, ok := result["text"].(string); ok && s != "" {
		return s, true
	}
	if content, ok := result["content"].(map[string]any); ok {
		if s, ok := content["text"].(string); ok && s != "" {
			return s, true
		}
	}
	if s, ok := result["result"].(string); ok && s != "" {
		return s, true
	}
	if choices, ok := result["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if s, ok := msg["content"].(string); ok && s != "" {
					return s, true
				}
			}
		}
	}
	return "", false
}
