package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
)

// StorageKey holds the serialized TokenSet.
const StorageKey = "oauth2_tokens"

// ErrMalformed is returned by Load when the stored value cannot be decoded.
var ErrMalformed = errors.New("stored token set is malformed")

// Repo persists the current TokenSet behind the storage port.
type Repo struct {
	storage storage.Storage
}

// NewRepo creates a token repo over s.
func NewRepo(s storage.Storage) *Repo {
	return &Repo{storage: s}
}

// Load returns the stored set, or nil when nothing is stored.
func (r *Repo) Load(ctx context.Context) (*TokenSet, error) {
	raw, err := r.storage.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[token Load] %w", err)
	}

	var ts TokenSet
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		return nil, fmt.Errorf("[token Load] %w: %v", ErrMalformed, err)
	}
	return &ts, nil
}

// Save replaces the stored set. A nil set is a no-op.
func (r *Repo) Save(ctx context.Context, ts *TokenSet) error {
	if ts == nil {
		return nil
	}
	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("[token Save] %w", err)
	}
	if err := r.storage.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("[token Save] %w", err)
	}
	return nil
}

// Clear removes the stored set.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.storage.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("[token Clear] %w", err)
	}
	return nil
}
