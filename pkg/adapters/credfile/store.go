package credfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/toolgate/pkg/domain"
)

// Store implements ports.CredentialStore on the local filesystem.
// Tokens live in one JSON file per (user, service) pair under BasePath.
type Store struct {
	BasePath string
}

// New creates a file-backed store. An empty basePath defaults to
// ".toolgate/credentials".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".toolgate", "credentials")
	}
	return &Store{BasePath: basePath}
}

// Save upserts the token map for a (user, service) pair.
func (s *Store) Save(ctx context.Context, userID, service string, tokens map[string]string) error {
	path, err := s.path(userID, service)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to ensure credential directory: %w", err)
	}

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// Load retrieves the token map, or domain.ErrMissingCredentials.
func (s *Store) Load(ctx context.Context, userID, service string) (map[string]string, error) {
	path, err := s.path(userID, service)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrMissingCredentials
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}

	var tokens map[string]string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential file: %w", err)
	}
	return tokens, nil
}

// Delete removes the token file, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, userID, service string) (bool, error) {
	path, err := s.path(userID, service)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete credential file: %w", err)
	}
	return true, nil
}

func (s *Store) path(userID, service string) (string, error) {
	if userID == "" || service == "" {
		return "", fmt.Errorf("userID and service cannot be empty")
	}
	// Keys become path segments; refuse anything that could escape BasePath.
	if strings.ContainsAny(userID+service, `/\.`) {
		return "", fmt.Errorf("invalid characters in credential key")
	}
	return filepath.Join(s.BasePath, userID, service+".json"), nil
}
