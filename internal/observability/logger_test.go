package observability_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/config"
	"github.com/agentcore/core/internal/observability"
)

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := observability.NewLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("hello", "key", "value")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "key=value")
}

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := observability.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("suppressed", "key", "value")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := observability.NewLogger(config.LoggingConfig{Level: "verbose", Format: "text"}, &bytes.Buffer{})
	assert.Error(t, err)
}
