package credredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/toolgate/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.CredentialStore using Redis.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets an expiration on stored credentials.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "toolgate:credentials:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(userID, service string) string {
	return s.prefix + userID + ":" + service
}

// Save upserts the token map for a (user, service) pair.
func (s *Store) Save(ctx context.Context, userID, service string, tokens map[string]string) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID, service), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save credentials to redis: %w", err)
	}
	return nil
}

// Load retrieves the token map, or domain.ErrMissingCredentials.
func (s *Store) Load(ctx context.Context, userID, service string) (map[string]string, error) {
	val, err := s.client.Get(ctx, s.key(userID, service)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrMissingCredentials
		}
		return nil, fmt.Errorf("failed to load credentials from redis: %w", err)
	}

	var tokens map[string]string
	if err := json.Unmarshal([]byte(val), &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return tokens, nil
}

// Delete removes the record, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, userID, service string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(userID, service)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete credentials from redis: %w", err)
	}
	return n > 0, nil
}
