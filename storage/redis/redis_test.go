package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage/redis"
)

type testFixture struct {
	server *miniredis.Miniredis
	client *goredis.Client
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &testFixture{server: mr, client: client}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set get remove", func(t *testing.T) {
		f := setupTestFixture(t)
		s := redis.NewWithClient(f.client, "", 0)
		require.NoError(t, s.Set(ctx, "k", "v"))

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", v)

		require.NoError(t, s.Remove(ctx, "k"))
		_, err = s.Get(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing key", func(t *testing.T) {
		f := setupTestFixture(t)
		s := redis.NewWithClient(f.client, "console:a", time.Minute)
		_, err := s.Get(ctx, "nope")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("remove of a missing key", func(t *testing.T) {
		f := setupTestFixture(t)
		s := redis.NewWithClient(f.client, "console:a", 0)
		require.NoError(t, s.Remove(ctx, "nope"))
	})

	t.Run("keys are scoped to the session prefix", func(t *testing.T) {
		f := setupTestFixture(t)
		a := redis.NewWithClient(f.client, "console:a", 0)
		b := redis.NewWithClient(f.client, "console:b", 0)
		require.NoError(t, a.Set(ctx, "oauth2_tokens", "ta"))

		got, err := f.server.Get("console:a:oauth2_tokens")
		require.NoError(t, err)
		require.Equal(t, "ta", got)

		_, err = b.Get(ctx, "oauth2_tokens")
		require.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, b.Set(ctx, "oauth2_tokens", "tb"))
		require.NoError(t, b.Remove(ctx, "oauth2_tokens"))
		v, err := a.Get(ctx, "oauth2_tokens")
		require.NoError(t, err)
		require.Equal(t, "ta", v)
	})

	t.Run("ttl is applied on every write", func(t *testing.T) {
		f := setupTestFixture(t)
		s := redis.NewWithClient(f.client, "console:a", time.Minute)
		require.NoError(t, s.Set(ctx, "k", "v1"))
		require.Equal(t, time.Minute, f.server.TTL("console:a:k"))

		f.server.FastForward(40 * time.Second)
		require.NoError(t, s.Set(ctx, "k", "v2"))
		require.Equal(t, time.Minute, f.server.TTL("console:a:k"))

		f.server.FastForward(61 * time.Second)
		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("zero ttl keeps keys", func(t *testing.T) {
		f := setupTestFixture(t)
		s := redis.NewWithClient(f.client, "", 0)
		require.NoError(t, s.Set(ctx, "k", "v"))
		require.Zero(t, f.server.TTL("k"))
	})

	t.Run("new pings the server", func(t *testing.T) {
		f := setupTestFixture(t)
		s, err := redis.New(ctx, redis.Config{Addr: f.server.Addr(), Prefix: "console:a"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.Set(ctx, "k", "v"))
		require.True(t, f.server.Exists("console:a:k"))

		addr := f.server.Addr()
		f.server.Close()
		_, err = redis.New(ctx, redis.Config{Addr: addr})
		require.Error(t, err)
	})
}
