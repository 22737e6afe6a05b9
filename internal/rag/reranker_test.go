package rag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcore/core/internal/rag"
)

func TestRerankerFiltersBelowThreshold(t *testing.T) {
	r := rag.NewReranker()
	results := []rag.Result{
		{Chunk: rag.Chunk{ID: "1"}, Score: 0.9},
		{Chunk: rag.Chunk{ID: "2"}, Score: 0.2},
	}
	threshold := rag.ThresholdModerate
	filtered := r.ProcessResults("q", results, &threshold, false)
	assert.Len(t, filtered, 1)
	assert.Equal(t, "1", filtered[0].Chunk.ID)
}

func TestRerankerStableSortsByScore(t *testing.T) {
	r := rag.NewReranker()
	results := []rag.Result{
		{Chunk: rag.Chunk{ID: "low"}, Score: 0.1},
		{Chunk: rag.Chunk{ID: "high"}, Score: 0.9},
		{Chunk: rag.Chunk{ID: "mid"}, Score: 0.5},
	}
	out := r.ProcessResults("q", results, nil, true)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{out[0].Chunk.ID, out[1].Chunk.ID, out[2].Chunk.ID})
}

func TestRerankerNoOpWhenDisabled(t *testing.T) {
	r := rag.NewReranker()
	results := []rag.Result{
		{Chunk: rag.Chunk{ID: "low"}, Score: 0.1},
		{Chunk: rag.Chunk{ID: "high"}, Score: 0.9},
	}
	out := r.ProcessResults("q", results, nil, false)
	assert.Equal(t, "low", out[0].Chunk.ID)
}
