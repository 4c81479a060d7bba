package ports

import (
	"context"

	"github.com/aretw0/toolgate/pkg/domain"
)

// StreamClient performs one SSE exchange with a remote tool server:
// POST a message, consume the stream, return the first meaningful payload.
type StreamClient interface {
	Exchange(ctx context.Context, url string, msg domain.Message) (domain.Message, error)
}

// Deliverer delivers an outbound message on the user's origin channel.
type Deliverer interface {
	Deliver(ctx context.Context, recipient, body string) error
}

// Mailer sends the secondary-action email built from a primary result.
type Mailer interface {
	Send(ctx context.Context, email domain.Email) error
}
