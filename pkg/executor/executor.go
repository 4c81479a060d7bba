// Package executor runs interpreted commands end to end: it dispatches to
// the right tool server, formats the outcome, delivers it back to the user
// over WhatsApp in size-bounded chunks, and fires the optional secondary
// email action.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/toolgate/internal/logging"
	"github.com/aretw0/toolgate/pkg/domain"
	"github.com/aretw0/toolgate/pkg/interpreter"
	"github.com/aretw0/toolgate/pkg/ports"
)

// State labels the phase a task is in; it drives logging only.
type State string

const (
	StateInterpreting State = "interpreting"
	StateDispatching  State = "dispatching"
	StateFormatting   State = "formatting"
	StateDelivering   State = "delivering"
	StateSecondary    State = "secondary"
	StateDone         State = "done"
)

// User-facing copy, kept verbatim in Spanish.
const (
	promptGenerateText   = "Genera un texto sobre: "
	promptSearchKeywords = "Sugiere 5 palabras clave SEO para un artículo sobre: "

	defaultTextTopic    = "algo interesante"
	defaultKeywordTopic = "marketing digital"

	apologyUnknown   = "Lo siento, no entendí qué acción realizar."
	apologyToolError = "Lo siento, ocurrió un error al procesar tu solicitud. Inténtalo de nuevo más tarde."

	emailSubjectPrefix = "Resultado de tu solicitud: "
)

// Caller runs a single operation against a tool server.
type Caller interface {
	Execute(ctx context.Context, userID, service, operation string, args map[string]any) (map[string]any, error)
}

// Intenter classifies free-form text into a command.
type Intenter interface {
	Interpret(ctx context.Context, text string) domain.InterpretedCommand
}

// Observer receives task and delivery counters.
type Observer interface {
	ObserveTask(command, outcome string)
	ObserveChunk()
}

type nopObserver struct{}

func (nopObserver) ObserveTask(string, string) {}
func (nopObserver) ObserveChunk()              {}

// Result reports what one task ended up doing.
type Result struct {
	TaskID        string          `json:"task_id"`
	Command       domain.Command  `json:"command"`
	Reply         string          `json:"reply"`
	ChunksSent    int             `json:"chunks_sent"`
	ChunksFailed  int             `json:"chunks_failed"`
	SecondarySent bool            `json:"secondary_sent"`
	State         State           `json:"state"`
}

// Executor wires the interpreter, the tool client, and the outbound
// channels together.
type Executor struct {
	interp  Intenter
	tools   Caller
	deliver ports.Deliverer
	mailer  ports.Mailer
	observe Observer
	model   string
	userID  string
	logger  *slog.Logger
}

// Option configures the Executor.
type Option func(*Executor)

// WithMailer enables the secondary send_email action.
func WithMailer(m ports.Mailer) Option {
	return func(e *Executor) { e.mailer = m }
}

// WithObserver sets the metrics sink.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observe = o }
}

// WithModel overrides the generation model.
func WithModel(model string) Option {
	return func(e *Executor) { e.model = model }
}

// WithPlatformUser sets the credential-store user that model calls run as.
func WithPlatformUser(userID string) Option {
	return func(e *Executor) { e.userID = userID }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// New creates an Executor.
func New(interp Intenter, tools Caller, deliver ports.Deliverer, opts ...Option) *Executor {
	e := &Executor{
		interp:  interp,
		tools:   tools,
		deliver: deliver,
		observe: nopObserver{},
		model:   "gpt-4o-mini",
		userID:  "platform",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run takes one incoming message through the whole pipeline. The sender
// always gets an answer: failures along the way turn into apology replies
// rather than silence, so the returned error is reserved for delivery
// failures where even that answer could not go out.
func (e *Executor) Run(ctx context.Context, from, text string) (*Result, error) {
	res := &Result{TaskID: uuid.NewString(), State: StateInterpreting}
	log := e.logger.With("task", res.TaskID, "from", from)

	cmd := e.interp.Interpret(ctx, text)
	res.Command = cmd.Command
	if cmd.Err != nil {
		log.Warn("interpretation degraded to unknown", "err", cmd.Err)
	}

	res.State = StateDispatching
	switch cmd.Command {
	case domain.CommandUnknown:
		e.observe.ObserveTask(string(cmd.Command), "unknown")
		return e.finish(ctx, log, res, from, apologyUnknown)

	case domain.CommandSendWhatsApp:
		return e.runRelay(ctx, log, res, from, cmd)
	}

	body, ok := e.generate(ctx, log, cmd)
	res.State = StateFormatting
	if !ok {
		e.observe.ObserveTask(string(cmd.Command), "tool_error")
		return e.finish(ctx, log, res, from, apologyToolError)
	}

	res.State = StateDelivering
	sent, failed := e.deliverChunks(ctx, log, from, body)
	res.ChunksSent, res.ChunksFailed = sent, failed
	res.Reply = body

	if cmd.SecondaryAction == domain.SecondarySendEmail {
		res.State = StateSecondary
		e.runSecondary(ctx, log, res, from, cmd, body)
	}

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	e.observe.ObserveTask(string(cmd.Command), outcome)
	res.State = StateDone
	if sent == 0 && failed > 0 {
		return res, fmt.Errorf("delivery to %s failed for all %d chunks", from, failed)
	}
	return res, nil
}

// runRelay handles send_whatsapp_message: the body goes to the requested
// recipient, the original sender only gets a confirmation.
func (e *Executor) runRelay(ctx context.Context, log *slog.Logger, res *Result, from string, cmd domain.InterpretedCommand) (*Result, error) {
	params, err := domain.DecodeParams[domain.SendWhatsAppParams](cmd.Parameters)
	if err != nil || params.RecipientNumber == "" || params.MessageText == "" {
		log.Warn("relay command missing parameters", "err", err)
		e.observe.ObserveTask(string(cmd.Command), "bad_params")
		return e.finish(ctx, log, res, from, apologyUnknown)
	}

	res.State = StateDelivering
	sent, failed := e.deliverChunks(ctx, log, params.RecipientNumber, params.MessageText)
	res.ChunksSent, res.ChunksFailed = sent, failed

	confirmation := fmt.Sprintf("Mensaje enviado a %s.", params.RecipientNumber)
	if sent == 0 {
		confirmation = fmt.Sprintf("No pude enviar el mensaje a %s.", params.RecipientNumber)
	}
	e.observe.ObserveTask(string(cmd.Command), relayOutcome(sent, failed))
	return e.finish(ctx, log, res, from, confirmation)
}

func relayOutcome(sent, failed int) string {
	switch {
	case failed == 0:
		return "ok"
	case sent > 0:
		return "partial"
	default:
		return "delivery_error"
	}
}

// generate runs the model-backed commands and extracts the produced text.
func (e *Executor) generate(ctx context.Context, log *slog.Logger, cmd domain.InterpretedCommand) (string, bool) {
	var prompt string
	switch cmd.Command {
	case domain.CommandGenerateText:
		params, err := domain.DecodeParams[domain.GenerateTextParams](cmd.Parameters)
		if err != nil {
			log.Warn("generate_text parameters unusable", "err", err)
		}
		topic := params.Topic
		if topic == "" {
			topic = defaultTextTopic
		}
		prompt = promptGenerateText + topic

	case domain.CommandSearchKeywords:
		params, err := domain.DecodeParams[domain.SearchKeywordsParams](cmd.Parameters)
		if err != nil {
			log.Warn("search_keywords parameters unusable", "err", err)
		}
		topic := params.Topic
		if topic == "" {
			topic = defaultKeywordTopic
		}
		prompt = promptSearchKeywords + topic

	default:
		return "", false
	}

	result, err := e.tools.Execute(ctx, e.userID, "openai", "generate_text", map[string]any{
		"prompt": prompt,
		"model":  e.model,
	})
	if err != nil {
		log.Error("generation failed", "command", cmd.Command, "err", err)
		return "", false
	}
	body, ok := interpreter.ExtractText(result)
	if !ok || strings.TrimSpace(body) == "" {
		log.Error("generation returned no text", "command", cmd.Command)
		return "", false
	}
	return body, true
}

// deliverChunks ships body to recipient chunk by chunk. One failed chunk
// does not stop the rest, so the recipient keeps whatever made it through.
func (e *Executor) deliverChunks(ctx context.Context, log *slog.Logger, recipient, body string) (sent, failed int) {
	for i, chunk := range ChunkMessage(body) {
		if err := e.deliver.Deliver(ctx, recipient, chunk); err != nil {
			log.Error("chunk delivery failed", "recipient", recipient, "chunk", i+1, "err", err)
			failed++
			continue
		}
		e.observe.ObserveChunk()
		sent++
	}
	return sent, failed
}

// runSecondary sends the generated body by email and tells the sender how
// that went. Email failures never fail the task.
func (e *Executor) runSecondary(ctx context.Context, log *slog.Logger, res *Result, from string, cmd domain.InterpretedCommand, body string) {
	params, err := domain.DecodeParams[domain.SendEmailParams](cmd.SecondaryParameters)
	if err != nil || params.ToAddress == "" {
		log.Warn("secondary email missing address", "err", err)
		return
	}
	if e.mailer == nil {
		log.Warn("secondary email requested but no mailer configured", "to", params.ToAddress)
		e.deliverFollowUp(ctx, log, from, fmt.Sprintf("No pude enviar el correo a %s.", params.ToAddress))
		return
	}

	subject := params.Subject
	if subject == "" {
		subject = emailSubjectPrefix + string(cmd.Command)
	}

	email := domain.Email{
		ToAddress: params.ToAddress,
		Subject:   subject,
		BodyHTML:  renderEmailHTML(subject, body),
		Headers: map[string]string{
			"X-Priority":        "1",
			"X-MSMail-Priority": "High",
			"Importance":        "High",
		},
	}
	if err := e.mailer.Send(ctx, email); err != nil {
		log.Error("secondary email failed", "to", params.ToAddress, "err", err)
		e.deliverFollowUp(ctx, log, from, fmt.Sprintf("No pude enviar el correo a %s.", params.ToAddress))
		return
	}

	res.SecondarySent = true
	log.Info("secondary email sent", "to", params.ToAddress)
	e.deliverFollowUp(ctx, log, from, fmt.Sprintf("Además, envié el resultado a %s.", params.ToAddress))
}

func (e *Executor) deliverFollowUp(ctx context.Context, log *slog.Logger, recipient, msg string) {
	if err := e.deliver.Deliver(ctx, recipient, msg); err != nil {
		log.Error("follow-up delivery failed", "recipient", recipient, "err", err)
	}
}

// finish delivers a short closing reply and seals the result.
func (e *Executor) finish(ctx context.Context, log *slog.Logger, res *Result, from, reply string) (*Result, error) {
	res.Reply = reply
	res.State = StateDone
	if err := e.deliver.Deliver(ctx, from, reply); err != nil {
		log.Error("reply delivery failed", "recipient", from, "err", err)
		return res, fmt.Errorf("failed to deliver reply to %s: %w", from, err)
	}
	return res, nil
}

// renderEmailHTML wraps the generated text in the fixed email layout.
func renderEmailHTML(subject, body string) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	paragraphs := strings.ReplaceAll(escaped.Replace(body), "\n", "<br>")
	return fmt.Sprintf(
		"<html><body><h1>%s</h1><p>%s</p><hr><p><em>Enviado automáticamente por Toolgate.</em></p></body></html>",
		escaped.Replace(subject), paragraphs,
	)
}
