package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/toolgate/pkg/domain"
)

type fakeIntenter struct {
	cmd domain.InterpretedCommand
}

func (f *fakeIntenter) Interpret(context.Context, string) domain.InterpretedCommand {
	return f.cmd
}

type fakeCaller struct {
	response string
	err      error
	lastArgs map[string]any
}

func (f *fakeCaller) Execute(_ context.Context, _, _, _ string, args map[string]any) (map[string]any, error) {
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"text": f.response}, nil
}

type delivery struct {
	recipient string
	body      string
}

type fakeDeliverer struct {
	deliveries []delivery
	failFirst  bool
	failAll    bool
}

func (f *fakeDeliverer) Deliver(_ context.Context, recipient, body string) error {
	if f.failAll || (f.failFirst && len(f.deliveries) == 0) {
		f.deliveries = append(f.deliveries, delivery{})
		return errors.New("carrier unavailable")
	}
	f.deliveries = append(f.deliveries, delivery{recipient: recipient, body: body})
	return nil
}

type fakeMailer struct {
	sent []domain.Email
	err  error
}

func (f *fakeMailer) Send(_ context.Context, email domain.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func generateCmd(topic string) domain.InterpretedCommand {
	return domain.InterpretedCommand{
		Command:    domain.CommandGenerateText,
		Parameters: map[string]any{"topic": topic},
	}
}

func TestExecutor_GenerateText(t *testing.T) {
	ctx := context.Background()
	caller := &fakeCaller{response: "Un texto sobre el mar."}
	deliverer := &fakeDeliverer{}
	exec := New(&fakeIntenter{cmd: generateCmd("el mar")}, caller, deliverer)

	result, err := exec.Run(ctx, "+521555000", "Genera un texto sobre el mar")
	require.NoError(t, err)

	assert.Equal(t, domain.CommandGenerateText, result.Command)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, 1, result.ChunksSent)
	assert.NotEmpty(t, result.TaskID)

	require.Len(t, deliverer.deliveries, 1)
	assert.Equal(t, "+521555000", deliverer.deliveries[0].recipient)
	assert.Equal(t, "Un texto sobre el mar.", deliverer.deliveries[0].body)

	prompt, _ := caller.lastArgs["prompt"].(string)
	assert.Equal(t, "Genera un texto sobre: el mar", prompt)
}

func TestExecutor_DefaultTopics(t *testing.T) {
	ctx := context.Background()

	t.Run("Generate Text", func(t *testing.T) {
		caller := &fakeCaller{response: "texto"}
		exec := New(&fakeIntenter{cmd: generateCmd("")}, caller, &fakeDeliverer{})
		_, err := exec.Run(ctx, "+1", "genera algo")
		require.NoError(t, err)
		assert.Equal(t, "Genera un texto sobre: algo interesante", caller.lastArgs["prompt"])
	})

	t.Run("Search Keywords", func(t *testing.T) {
		caller := &fakeCaller{response: "seo, sem"}
		exec := New(&fakeIntenter{cmd: domain.InterpretedCommand{
			Command:    domain.CommandSearchKeywords,
			Parameters: map[string]any{},
		}}, caller, &fakeDeliverer{})
		_, err := exec.Run(ctx, "+1", "dame keywords")
		require.NoError(t, err)
		assert.Equal(t, "Sugiere 5 palabras clave SEO para un artículo sobre: marketing digital", caller.lastArgs["prompt"])
	})
}

func TestExecutor_UnknownCommand(t *testing.T) {
	deliverer := &fakeDeliverer{}
	exec := New(&fakeIntenter{cmd: domain.InterpretedCommand{Command: domain.CommandUnknown}}, &fakeCaller{}, deliverer)

	result, err := exec.Run(context.Background(), "+1", "qué hora es en marte")
	require.NoError(t, err)

	assert.Equal(t, "Lo siento, no entendí qué acción realizar.", result.Reply)
	require.Len(t, deliverer.deliveries, 1)
	assert.Equal(t, result.Reply, deliverer.deliveries[0].body)
}

func TestExecutor_ToolErrorApology(t *testing.T) {
	deliverer := &fakeDeliverer{}
	exec := New(&fakeIntenter{cmd: generateCmd("x")}, &fakeCaller{err: errors.New("model down")}, deliverer)

	result, err := exec.Run(context.Background(), "+1", "genera un texto")
	require.NoError(t, err)

	require.Len(t, deliverer.deliveries, 1)
	assert.Contains(t, deliverer.deliveries[0].body, "Lo siento")
	assert.Equal(t, StateDone, result.State)
}

func TestExecutor_Relay(t *testing.T) {
	ctx := context.Background()

	t.Run("Delivers To Recipient And Confirms To Sender", func(t *testing.T) {
		deliverer := &fakeDeliverer{}
		exec := New(&fakeIntenter{cmd: domain.InterpretedCommand{
			Command: domain.CommandSendWhatsApp,
			Parameters: map[string]any{
				"recipient_number": "+525511112222",
				"message_text":     "nos vemos a las 8",
			},
		}}, &fakeCaller{}, deliverer)

		result, err := exec.Run(ctx, "+521555000", "mándale un whatsapp a mi socio")
		require.NoError(t, err)

		require.Len(t, deliverer.deliveries, 2)
		assert.Equal(t, "+525511112222", deliverer.deliveries[0].recipient)
		assert.Equal(t, "nos vemos a las 8", deliverer.deliveries[0].body)
		assert.Equal(t, "+521555000", deliverer.deliveries[1].recipient)
		assert.Equal(t, "Mensaje enviado a +525511112222.", deliverer.deliveries[1].body)
		assert.Equal(t, 1, result.ChunksSent)
	})

	t.Run("Missing Parameters Apologises", func(t *testing.T) {
		deliverer := &fakeDeliverer{}
		exec := New(&fakeIntenter{cmd: domain.InterpretedCommand{
			Command:    domain.CommandSendWhatsApp,
			Parameters: map[string]any{"recipient_number": "+52"},
		}}, &fakeCaller{}, deliverer)

		result, err := exec.Run(ctx, "+1", "manda un mensaje")
		require.NoError(t, err)
		assert.Equal(t, "Lo siento, no entendí qué acción realizar.", result.Reply)
	})
}

func TestExecutor_ChunkedDelivery(t *testing.T) {
	long := strings.Repeat("contenido extenso. ", 200)
	deliverer := &fakeDeliverer{}
	exec := New(&fakeIntenter{cmd: generateCmd("x")}, &fakeCaller{response: long}, deliverer)

	result, err := exec.Run(context.Background(), "+1", "genera mucho texto")
	require.NoError(t, err)

	assert.Greater(t, result.ChunksSent, 1)
	assert.Equal(t, 0, result.ChunksFailed)
	assert.True(t, strings.HasPrefix(deliverer.deliveries[0].body, "[Part 1/"))
}

func TestExecutor_PartialDelivery(t *testing.T) {
	long := strings.Repeat("contenido extenso. ", 200)
	deliverer := &fakeDeliverer{failFirst: true}
	exec := New(&fakeIntenter{cmd: generateCmd("x")}, &fakeCaller{response: long}, deliverer)

	result, err := exec.Run(context.Background(), "+1", "genera mucho texto")
	require.NoError(t, err)

	assert.Equal(t, 1, result.ChunksFailed)
	assert.Greater(t, result.ChunksSent, 0)
}

func TestExecutor_AllChunksFail(t *testing.T) {
	deliverer := &fakeDeliverer{failAll: true}
	exec := New(&fakeIntenter{cmd: generateCmd("x")}, &fakeCaller{response: "corto"}, deliverer)

	_, err := exec.Run(context.Background(), "+1", "genera un texto")
	assert.Error(t, err)
}

func TestExecutor_SecondaryEmail(t *testing.T) {
	ctx := context.Background()
	withEmail := domain.InterpretedCommand{
		Command:             domain.CommandGenerateText,
		Parameters:          map[string]any{"topic": "ventas"},
		SecondaryAction:     domain.SecondarySendEmail,
		SecondaryParameters: map[string]any{"to_address": "ana@example.com"},
	}

	t.Run("Sends And Confirms", func(t *testing.T) {
		mail := &fakeMailer{}
		deliverer := &fakeDeliverer{}
		exec := New(&fakeIntenter{cmd: withEmail}, &fakeCaller{response: "línea uno\nlínea dos"}, deliverer,
			WithMailer(mail))

		result, err := exec.Run(ctx, "+1", "genera y envíalo a ana")
		require.NoError(t, err)
		assert.True(t, result.SecondarySent)

		require.Len(t, mail.sent, 1)
		email := mail.sent[0]
		assert.Equal(t, "ana@example.com", email.ToAddress)
		assert.Equal(t, "Resultado de tu solicitud: generate_text", email.Subject)
		assert.Contains(t, email.BodyHTML, "línea uno<br>línea dos")
		assert.Equal(t, "High", email.Headers["X-MSMail-Priority"])

		last := deliverer.deliveries[len(deliverer.deliveries)-1]
		assert.Equal(t, "Además, envié el resultado a ana@example.com.", last.body)
	})

	t.Run("Mailer Failure Reports Back", func(t *testing.T) {
		deliverer := &fakeDeliverer{}
		exec := New(&fakeIntenter{cmd: withEmail}, &fakeCaller{response: "texto"}, deliverer,
			WithMailer(&fakeMailer{err: errors.New("smtp down")}))

		result, err := exec.Run(ctx, "+1", "genera y envíalo a ana")
		require.NoError(t, err)
		assert.False(t, result.SecondarySent)

		last := deliverer.deliveries[len(deliverer.deliveries)-1]
		assert.Equal(t, "No pude enviar el correo a ana@example.com.", last.body)
	})

	t.Run("No Mailer Configured Reports Back", func(t *testing.T) {
		deliverer := &fakeDeliverer{}
		exec := New(&fakeIntenter{cmd: withEmail}, &fakeCaller{response: "texto"}, deliverer)

		result, err := exec.Run(ctx, "+1", "genera y envíalo a ana")
		require.NoError(t, err)
		assert.False(t, result.SecondarySent)

		last := deliverer.deliveries[len(deliverer.deliveries)-1]
		assert.Contains(t, last.body, "No pude enviar el correo")
	})
}

func TestExecutor_ObserverCounts(t *testing.T) {
	type record struct{ command, outcome string }
	var tasks []record
	chunks := 0

	obs := observerFuncs{
		task:  func(command, outcome string) { tasks = append(tasks, record{command, outcome}) },
		chunk: func() { chunks++ },
	}

	exec := New(&fakeIntenter{cmd: generateCmd("x")}, &fakeCaller{response: "texto"}, &fakeDeliverer{},
		WithObserver(obs))

	_, err := exec.Run(context.Background(), "+1", "genera un texto")
	require.NoError(t, err)

	assert.Equal(t, []record{{"generate_text", "ok"}}, tasks)
	assert.Equal(t, 1, chunks)
}

type observerFuncs struct {
	task  func(command, outcome string)
	chunk func()
}

func (o observerFuncs) ObserveTask(command, outcome string) { o.task(command, outcome) }
func (o observerFuncs) ObserveChunk()                       { o.chunk() }
