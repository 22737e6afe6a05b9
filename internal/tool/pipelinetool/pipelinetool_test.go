package pipelinetool_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/llm"
	"github.com/agentcore/core/internal/message"
	"github.com/agentcore/core/internal/rag"
	"github.com/agentcore/core/internal/tool"
	"github.com/agentcore/core/internal/tool/pipelinetool"
)

// stubSummarizer returns a fixed bullet-point summary regardless of input.
type stubSummarizer struct{}

func (stubSummarizer) Chat(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (*llm.Response, error) {
	return &llm.Response{
		Choices: []llm.Choice{{Message: message.NewAssistantMessage("- point one\n- point two")}},
	}, nil
}

func (stubSummarizer) ChatStream(ctx context.Context, messages []message.Message, tools []llm.ToolDefinition, temperature *float64, conversationID string) (<-chan llm.StreamChunk, <-chan error) {
	panic("not used")
}
func (stubSummarizer) HealthCheck(ctx context.Context) bool { return true }
func (stubSummarizer) Close() error                         { return nil }

func newRegistry(t *testing.T) (*tool.Registry, string) {
	t.Helper()
	index := rag.NewIndex()
	chunker := rag.NewChunker(500, 50)
	require.NoError(t, index.IndexChunks(chunker.Chunk("doc1", "The quick brown fox jumps over the lazy dog repeatedly near the river bank.")))

	saveDir := t.TempDir()
	registry := tool.NewRegistry()
	require.NoError(t, pipelinetool.New(index, stubSummarizer{}, saveDir).Register(registry))
	return registry, saveDir
}

func callTool(t *testing.T, registry *tool.Registry, name, argsJSON string) string {
	t.Helper()
	return registry.ExecuteTool(context.Background(), name, argsJSON)
}

func TestPipelineSearchDocs(t *testing.T) {
	registry, _ := newRegistry(t)
	out := callTool(t, registry, "pipeline_search_docs", `{"query":"fox"}`)
	assert.Contains(t, out, "doc1")
}

func TestPipelineSummarize(t *testing.T) {
	registry, _ := newRegistry(t)
	out := callTool(t, registry, "pipeline_summarize", `{"text":"some long passage"}`)
	assert.Contains(t, out, "point one")
}

func TestPipelineSaveToFile(t *testing.T) {
	registry, saveDir := newRegistry(t)
	out := callTool(t, registry, "pipeline_save_to_file", `{"filename":"summary.txt","content":"hello"}`)
	assert.Contains(t, out, "saved")

	data, err := os.ReadFile(filepath.Join(saveDir, "summary.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPipelineSaveToFileRejectsPathTraversal(t *testing.T) {
	registry, saveDir := newRegistry(t)
	out := callTool(t, registry, "pipeline_save_to_file", `{"filename":"../escape.txt","content":"x"}`)
	assert.Contains(t, out, "saved")

	_, err := os.Stat(filepath.Join(saveDir, "..", "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}
