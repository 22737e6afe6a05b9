package rag_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/rag"
)

func TestChunkerShortContentSingleChunk(t *testing.T) {
	c := rag.NewChunker(500, 50)
	chunks := c.Chunk("doc1", "short content")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short content", chunks[0].Content)
	assert.Equal(t, "doc1", chunks[0].Source)
}

func TestChunkerOverlappingWindows(t *testing.T) {
	c := rag.NewChunker(100, 20)
	content := strings.Repeat("a", 350)
	chunks := c.Chunk("doc1", content)
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Content), 100)
	}
}

func TestChunkerChunkIDsUnique(t *testing.T) {
	c := rag.NewChunker(50, 10)
	chunks := c.Chunk("doc1", strings.Repeat("b", 200))
	seen := make(map[string]bool)
	for _, ch := range chunks {
		assert.False(t, seen[ch.ID], "duplicate chunk id %s", ch.ID)
		seen[ch.ID] = true
	}
}
