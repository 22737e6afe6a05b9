package compression_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/compression"
	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
)

type stubClient struct {
	response *llm.Response
	err      error
}

func (s *stubClient) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubClient) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	panic("not used")
}

func (s *stubClient) HealthCheck(ctx context.Context) bool { return true }
func (s *stubClient) Close() error                         { return nil }

func settings() conversation.CompressionSettings {
	return conversation.CompressionSettings{
		Enabled:            true,
		MessageThreshold:   4,
		KeepRecentMessages: 2,
		SummaryMaxTokens:   500,
		SummaryTemperature: 0.3,
	}
}

func buildHistory(n int) []message.Message {
	history := []message.Message{message.NewSystem("sys")}
	for i := 0; i < n; i++ {
		history = append(history, message.NewUser("message"))
	}
	return history
}

func TestNeedsCompressionRespectsThreshold(t *testing.T) {
	s := settings()
	assert.False(t, compression.NeedsCompression(buildHistory(3), s))
	assert.True(t, compression.NeedsCompression(buildHistory(4), s))
}

func TestNeedsCompressionDisabled(t *testing.T) {
	s := settings()
	s.Enabled = false
	assert.False(t, compression.NeedsCompression(buildHistory(10), s))
}

func TestCompressUsesLLMSummary(t *testing.T) {
	client := &stubClient{response: &llm.Response{
		Choices: []llm.Choice{{Message: message.NewAssistant("- fact one\n- fact two")}},
	}}
	c := compression.NewCompressor(client)

	history := buildHistory(6)
	newHistory, result, err := c.Compress(context.Background(), history, "conv1", settings())
	require.NoError(t, err)
	assert.True(t, result.Compressed)
	assert.Equal(t, "- fact one\n- fact two", result.Summary)
	// system + summary + 2 recent
	assert.Len(t, newHistory, 4)
	assert.Equal(t, message.RoleSystem, newHistory[0].Role)
	assert.Equal(t, message.RoleAssistant, newHistory[1].Role)
}

func TestCompressFallsBackOnLLMFailure(t *testing.T) {
	client := &stubClient{err: errors.New("boom")}
	c := compression.NewCompressor(client)

	history := buildHistory(6)
	newHistory, result, err := c.Compress(context.Background(), history, "conv1", settings())
	require.NoError(t, err)
	assert.True(t, result.Compressed)
	assert.Contains(t, result.Summary, "Summary of")
	assert.NotEmpty(t, newHistory)
}

func TestCompressNoOpBelowThreshold(t *testing.T) {
	client := &stubClient{}
	c := compression.NewCompressor(client)

	history := buildHistory(2)
	newHistory, result, err := c.Compress(context.Background(), history, "conv1", settings())
	require.NoError(t, err)
	assert.False(t, result.Compressed)
	assert.Equal(t, history, newHistory)
}

func TestStatsAccumulate(t *testing.T) {
	client := &stubClient{response: &llm.Response{
		Choices: []llm.Choice{{Message: message.NewAssistant("summary")}},
	}}
	c := compression.NewCompressor(client)

	history := buildHistory(6)
	_, _, err := c.Compress(context.Background(), history, "conv1", settings())
	require.NoError(t, err)

	stats := c.StatsFor("conv1")
	assert.Equal(t, 1, stats.TotalCompressions)
	assert.Equal(t, "summary", stats.LastSummary)
}
