package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
)

const (
	stateStorageKey = "oauth2_state"
	nonceStorageKey = "oauth2_nonce"

	csrfTokenLength = 32
)

// csrfContext lives between the redirect to the provider and the callback.
type csrfContext struct {
	state string
	nonce string
}

// generateRandomString creates a random base64url string
func generateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newCsrfContext() (csrfContext, error) {
	state, err := generateRandomString(csrfTokenLength)
	if err != nil {
		return csrfContext{}, fmt.Errorf("[auth newCsrfContext] state: %w", err)
	}
	nonce, err := generateRandomString(csrfTokenLength)
	if err != nil {
		return csrfContext{}, fmt.Errorf("[auth newCsrfContext] nonce: %w", err)
	}
	return csrfContext{state: state, nonce: nonce}, nil
}

func (c csrfContext) save(ctx context.Context, s storage.Storage) error {
	if err := s.Set(ctx, stateStorageKey, c.state); err != nil {
		return fmt.Errorf("[auth csrfContext save] %w", err)
	}
	if err := s.Set(ctx, nonceStorageKey, c.nonce); err != nil {
		return fmt.Errorf("[auth csrfContext save] %w", err)
	}
	return nil
}

// loadState returns the persisted state, or "" when none is stored.
func loadState(ctx context.Context, s storage.Storage) (string, error) {
	state, err := s.Get(ctx, stateStorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("[auth loadState] %w", err)
	}
	return state, nil
}

func clearCsrfContext(ctx context.Context, s storage.Storage) error {
	return errors.Join(
		s.Remove(ctx, stateStorageKey),
		s.Remove(ctx, nonceStorageKey),
	)
}

func statesMatch(stored, received string) bool {
	if stored == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}
