package rag_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/rag"
)

func seedIndex(t *testing.T) *rag.Index {
	t.Helper()
	idx := rag.NewIndex()
	err := idx.IndexChunks([]rag.Chunk{
		{ID: "a#0", Source: "a", Content: "golang concurrency patterns with goroutines and channels"},
		{ID: "b#0", Source: "b", Content: "python data science with pandas and numpy"},
		{ID: "c#0", Source: "c", Content: "goroutines and channels make go concurrency simple"},
	})
	require.NoError(t, err)
	return idx
}

func TestIndexSearchOrdersByScoreDescending(t *testing.T) {
	idx := seedIndex(t)
	results, err := idx.Search("goroutines channels concurrency", 3, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestIndexSearchMinRelevanceFiltersInclusive(t *testing.T) {
	idx := seedIndex(t)
	threshold := 1.0 // only an exact match would survive
	results, err := idx.Search("golang concurrency patterns with goroutines and channels", 10, &threshold)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, threshold)
	}
}

func TestIndexSearchRespectsTopK(t *testing.T) {
	idx := seedIndex(t)
	results, err := idx.Search("concurrency", 1, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 1)
}

func TestIndexClearEmptiesEntries(t *testing.T) {
	idx := seedIndex(t)
	idx.Clear()
	assert.Equal(t, 0, idx.Count())
}

func TestIndexSaveLoadRoundTrip(t *testing.T) {
	idx := seedIndex(t)
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, idx.Save(path))

	restored := rag.NewIndex()
	require.NoError(t, restored.Load(path))
	assert.Equal(t, idx.Count(), restored.Count())

	results, err := restored.Search("goroutines channels concurrency", 3, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestIndexLoadMissingFileErrors(t *testing.T) {
	idx := rag.NewIndex()
	err := idx.Load(filepath.Join(os.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}
