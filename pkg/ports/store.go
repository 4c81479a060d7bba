package ports

import "context"

// CredentialStore persists per-user, per-service token maps.
// Implementations are keyed by the (userID, service) pair.
type CredentialStore interface {
	// Save upserts the tokens for a (userID, service) pair.
	Save(ctx context.Context, userID, service string, tokens map[string]string) error

	// Load retrieves the tokens for a (userID, service) pair.
	// Returns domain.ErrMissingCredentials if none are stored.
	Load(ctx context.Context, userID, service string) (map[string]string, error)

	// Delete removes the tokens for a (userID, service) pair.
	// The boolean reports whether a record existed.
	Delete(ctx context.Context, userID, service string) (bool, error)
}
