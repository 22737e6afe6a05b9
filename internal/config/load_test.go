package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Selector)
	assert.Equal(t, 24, cfg.Storage.KVTTLHours)
	assert.Equal(t, "./reminders.json", cfg.Reminder.StorePath)
	assert.Equal(t, 5, cfg.Reminder.CheckIntervalMinutes)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "./rag-index.json", cfg.RAG.IndexPath)
}

func TestLoadRejectsQdrantEnabledWithoutHost(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
rag:
  qdrant_enabled: true
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rag.qdrant_host")
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_LLM_API_KEY", "secret-123")
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
  api_key: ${TEST_LLM_API_KEY}
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-123", cfg.LLM.APIKey)
}

func TestLoadEnvVarDefault(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: ${LLM_BASE_URL:-https://default.example.com}
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://default.example.com", cfg.LLM.BaseURL)
}

func TestLoadRejectsInvalidStorageSelector(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
storage:
  selector: nope
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingModel(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: https://api.example.com
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsSQLWithoutURL(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
storage:
  selector: sql
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsKeepRecentExceedingThreshold(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: gpt-4o-mini
  base_url: https://api.example.com
compression:
  message_threshold: 5
  keep_recent_messages: 10
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}
