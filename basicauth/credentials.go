package basicauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
)

const (
	credentialsStorageKey     = "basicAuthCredentials"
	setupInProgressStorageKey = "basicAuthSetupInProgress"
)

// CredentialStore keeps the console's basic-auth login between navigations.
type CredentialStore struct {
	storage storage.Storage
}

func NewCredentialStore(s storage.Storage) *CredentialStore {
	return &CredentialStore{storage: s}
}

// Login stores the encoded credentials.
func (c *CredentialStore) Login(ctx context.Context, username, password string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	if err := c.storage.Set(ctx, credentialsStorageKey, encoded); err != nil {
		return fmt.Errorf("[basicauth Login] %w", err)
	}
	return nil
}

func (c *CredentialStore) IsLoggedIn(ctx context.Context) bool {
	v, err := c.storage.Get(ctx, credentialsStorageKey)
	return err == nil && v != ""
}

// Authorization returns the Authorization header value, or "".
func (c *CredentialStore) Authorization(ctx context.Context) string {
	v, err := c.storage.Get(ctx, credentialsStorageKey)
	if err != nil || v == "" {
		return ""
	}
	return "Basic " + v
}

// Logout forgets the stored credentials.
func (c *CredentialStore) Logout(ctx context.Context) error {
	if err := c.storage.Remove(ctx, credentialsStorageKey); err != nil {
		return fmt.Errorf("[basicauth Logout] %w", err)
	}
	return nil
}

func (c *CredentialStore) SetSetupInProgress(ctx context.Context, inProgress bool) error {
	var err error
	if inProgress {
		err = c.storage.Set(ctx, setupInProgressStorageKey, "true")
	} else {
		err = c.storage.Remove(ctx, setupInProgressStorageKey)
	}
	if err != nil {
		return fmt.Errorf("[basicauth SetSetupInProgress] %w", err)
	}
	return nil
}

func (c *CredentialStore) SetupInProgress(ctx context.Context) (bool, error) {
	v, err := c.storage.Get(ctx, setupInProgressStorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("[basicauth SetupInProgress] %w", err)
	}
	return v == "true", nil
}
