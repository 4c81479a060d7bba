package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Command is the closed set of primary commands the interpreter can produce.
type Command string

const (
	CommandGenerateText   Command = "generate_text"
	CommandSearchKeywords Command = "search_keywords"
	CommandSendWhatsApp   Command = "send_whatsapp_message"
	CommandUnknown        Command = "unknown"
)

// ParseCommand maps a raw string onto the closed command set.
// Anything unrecognised degrades to CommandUnknown.
func ParseCommand(s string) Command {
	switch Command(s) {
	case CommandGenerateText, CommandSearchKeywords, CommandSendWhatsApp:
		return Command(s)
	default:
		return CommandUnknown
	}
}

// SecondaryAction is an auxiliary effect detected alongside the primary command.
type SecondaryAction string

// SecondarySendEmail emails the primary result to a detected address.
const SecondarySendEmail SecondaryAction = "send_email"

// InterpretedCommand is produced once per inbound user utterance and
// consumed by the task executor.
type InterpretedCommand struct {
	Command             Command
	Parameters          map[string]any
	SecondaryAction     SecondaryAction
	SecondaryParameters map[string]any
	Err                 error
}

// GenerateTextParams are the parameters for generate_text.
type GenerateTextParams struct {
	Topic string `mapstructure:"topic"`
}

// SearchKeywordsParams are the parameters for search_keywords.
type SearchKeywordsParams struct {
	Topic string `mapstructure:"topic"`
}

// SendWhatsAppParams are the parameters for send_whatsapp_message.
type SendWhatsAppParams struct {
	RecipientNumber string `mapstructure:"recipient_number"`
	MessageText     string `mapstructure:"message_text"`
}

// SendEmailParams are the parameters for the send_email secondary action.
type SendEmailParams struct {
	ToAddress string `mapstructure:"to_address"`
	Subject   string `mapstructure:"subject"`
}

// DecodeParams decodes a loose parameter map into a typed parameter struct.
func DecodeParams[T any](in map[string]any) (T, error) {
	var out T
	if err := mapstructure.Decode(in, &out); err != nil {
		return out, fmt.Errorf("failed to decode command parameters: %w", err)
	}
	return out, nil
}

// Email is an outbound email handed to the Mailer port.
type Email struct {
	ToAddress string
	ToName    string
	Subject   string
	BodyHTML  string
	Headers   map[string]string
}
