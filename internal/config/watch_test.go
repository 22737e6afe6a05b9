package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/config"
)

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
logging:
  level: info
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := config.Watch(ctx, path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
logging:
  level: debug
`), 0o644))

	select {
	case cfg := <-changes:
		require.NotNil(t, cfg)
		require.Equal(t, "debug", cfg.Logging.Level)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
