package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage/memory"
)

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("set get remove", func(t *testing.T) {
		s := memory.New(0)
		require.NoError(t, s.Set(ctx, "k", "v"))

		v, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, "v", v)

		require.NoError(t, s.Remove(ctx, "k"))
		_, err = s.Get(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("missing key", func(t *testing.T) {
		s := memory.New(time.Minute)
		_, err := s.Get(ctx, "nope")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("values expire with the session", func(t *testing.T) {
		s := memory.New(20 * time.Millisecond)
		require.NoError(t, s.Set(ctx, "k", "v"))
		time.Sleep(40 * time.Millisecond)
		_, err := s.Get(ctx, "k")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("flush", func(t *testing.T) {
		s := memory.New(0)
		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))
		s.Flush()
		_, err := s.Get(ctx, "a")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}
