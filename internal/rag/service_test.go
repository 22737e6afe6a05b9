package rag_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/rag"
)

// stubLLM answers with a fixed message regardless of input.
type stubLLM struct{}

func (stubLLM) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	return &llm.Response{Choices: []llm.Choice{{Message: message.NewAssistantMessage("an answer")}}}, nil
}

func (stubLLM) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	panic("not used")
}
func (stubLLM) HealthCheck(ctx context.Context) bool { return true }
func (stubLLM) Close() error                         { return nil }

func TestQueryWithRAGDegradesWhenIndexEmpty(t *testing.T) {
	index := rag.NewIndex()
	service := rag.NewService(index, stubLLM{})

	result, err := service.QueryWithRAG(context.Background(), "what is the answer?", 5, nil)
	require.NoError(t, err)
	assert.False(t, result.UsedRAG)
	assert.Equal(t, 0, result.FoundChunks)
}

func TestQueryWithRAGUsesRAGWhenIndexed(t *testing.T) {
	index := rag.NewIndex()
	chunker := rag.NewChunker(500, 50)
	require.NoError(t, index.IndexChunks(chunker.Chunk("doc1", "The quick brown fox jumps over the lazy dog.")))
	service := rag.NewService(index, stubLLM{})

	result, err := service.QueryWithRAG(context.Background(), "fox", 5, nil)
	require.NoError(t, err)
	assert.True(t, result.UsedRAG)
	assert.Equal(t, 1, result.FoundChunks)
}
