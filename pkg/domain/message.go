package domain

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Message on the SSE wire.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// TextContent wraps the textual body of a Message.
type TextContent struct {
	Text string `json:"text"`
}

// Message is the wire unit exchanged with SSE tool servers.
// Metadata carries the target capability name and its parameters.
type Message struct {
	Role     Role           `json:"role"`
	Content  TextContent    `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewUserMessage builds a user-role message with the given text and metadata.
func NewUserMessage(text string, metadata map[string]any) Message {
	return Message{
		Role:     RoleUser,
		Content:  TextContent{Text: text},
		Metadata: metadata,
	}
}

// CapabilityRequest is the stdio wire unit: one JSON object per line.
// Arguments is a JSON-encoded string, mirroring the OpenAI function-call shape.
type CapabilityRequest struct {
	Type     string             `json:"type"`
	Function CapabilityFunction `json:"function"`
}

// CapabilityFunction names the capability and carries its encoded arguments.
type CapabilityFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewCapabilityRequest builds a function-call request for the given
// capability, JSON-encoding the argument map. A nil map encodes as "{}".
func NewCapabilityRequest(name string, args map[string]any) (CapabilityRequest, error) {
	if args == nil {
		args = map[string]any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return CapabilityRequest{}, fmt.Errorf("failed to encode capability arguments: %w", err)
	}
	return CapabilityRequest{
		Type: "function",
		Function: CapabilityFunction{
			Name:      name,
			Arguments: string(encoded),
		},
	}, nil
}
