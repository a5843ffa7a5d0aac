package db

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmbeddingRoundTrip(t *testing.T) {
	c := &Chunk{}
	c.SetEmbedding([]float32{0.1, -0.5, 0.9}, "ollama")

	assert.Equal(t, 3, c.EmbeddingDim)
	assert.Equal(t, "ollama", c.EmbeddingProvider)

	vec, ok := c.Vector()
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, -0.5, 0.9}, vec)
}

func TestChunkVectorRejectsMissingEmbedding(t *testing.T) {
	c := &Chunk{}
	_, ok := c.Vector()
	assert.False(t, ok)
}

func TestChunkVectorRejectsInconsistentDimension(t *testing.T) {
	c := &Chunk{}
	c.SetEmbedding([]float32{1, 2, 3}, "mock")
	c.EmbeddingDim = 5

	_, ok := c.Vector()
	assert.False(t, ok)
}

func TestChunkVectorRejectsNonFiniteValues(t *testing.T) {
	c := &Chunk{
		Embedding:    []float64{0.5, math.NaN()},
		EmbeddingDim: 2,
	}
	_, ok := c.Vector()
	assert.False(t, ok)

	c.Embedding = []float64{0.5, math.Inf(1)}
	_, ok = c.Vector()
	assert.False(t, ok)
}
