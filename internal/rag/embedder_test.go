package rag_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/rag"
)

func TestEmbedderFitAndEmbedNormalized(t *testing.T) {
	e := rag.NewEmbedder()
	e.Fit([]string{
		"the quick brown fox",
		"the lazy dog sleeps",
		"foxes and dogs are animals",
	})
	require.Greater(t, e.Dimension(), 0)

	vec := e.Embed("the quick brown fox")
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares > 0 {
		assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-9)
	}
}

func TestEmbedderUnknownTermsDropped(t *testing.T) {
	e := rag.NewEmbedder()
	e.Fit([]string{"alpha beta gamma"})
	vec := e.Embed("zzz yyy xxx")
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestCosineSimilarityRejectsSizeMismatch(t *testing.T) {
	_, err := rag.CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	v := []float64{0.6, 0.8}
	score, err := rag.CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)
}
