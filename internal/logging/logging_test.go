package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
)

func TestNew(t *testing.T) {
	t.Run("production writes json at info", func(t *testing.T) {
		var buf bytes.Buffer
		l := logging.New("production", &buf)
		l.Debug().Msg("hidden")
		l.Info().Str("k", "v").Msg("shown")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "shown", entry["message"])
		require.Equal(t, "v", entry["k"])
		require.Contains(t, entry, "time")
	})

	t.Run("development enables debug", func(t *testing.T) {
		var buf bytes.Buffer
		l := logging.New("development", &buf)
		require.Equal(t, zerolog.DebugLevel, l.GetLevel())
		l.Debug().Msg("visible")
		require.Contains(t, buf.String(), "visible")
	})
}

func TestOrDefault(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	got := logging.OrDefault(&l)
	got.Info().Msg("x")
	require.NotEmpty(t, buf.String())
}
