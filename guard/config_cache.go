package guard

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/TechQuilaMx/kestra-rbac-oauth/api"
)

// ConfigLoader reads the backend configuration.
type ConfigLoader interface {
	Configs(ctx context.Context) (*api.Settings, error)
	BasicAuthValidationErrors(ctx context.Context) ([]string, error)
}

// ConfigCache keeps the first successfully loaded settings. Concurrent
// loads share one request; failures are not cached.
type ConfigCache struct {
	loader ConfigLoader
	group  singleflight.Group

	mu       sync.RWMutex
	settings *api.Settings
}

func NewConfigCache(loader ConfigLoader) *ConfigCache {
	return &ConfigCache{loader: loader}
}

// Load returns the cached settings, loading them on first use. The shared
// load outlives a cancelled caller; only the wait is bound to ctx.
func (c *ConfigCache) Load(ctx context.Context) (*api.Settings, error) {
	c.mu.RLock()
	s := c.settings
	c.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("configs", func() (any, error) {
		s, err := c.loader.Configs(loadCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.settings = s
		c.mu.Unlock()
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*api.Settings), nil
	}
}

// Reset forgets the cached settings.
func (c *ConfigCache) Reset() {
	c.mu.Lock()
	c.settings = nil
	c.mu.Unlock()
}
