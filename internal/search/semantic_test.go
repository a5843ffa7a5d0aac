package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarityBasics(t *testing.T) {
	a := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-9)
}

func TestCosineSimilarityDegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.4, 0.8, 0.5}
	assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-9)
}

func TestSemanticSkipsUnusableVectors(t *testing.T) {
	query := []float32{1, 0, 0}
	candidates := []Candidate{
		{ID: "ok", Vector: []float32{1, 0.1, 0}},
		{ID: "missing"},
		{ID: "wrong-dim", Vector: []float32{1, 0}},
	}
	results := Semantic(query, candidates)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].ID)
	assert.Equal(t, MethodSemantic, results[0].Method)
}

func TestSemanticOrdersBySimilarity(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: "far", Vector: []float32{0, 1}},
		{ID: "near", Vector: []float32{0.9, 0.1}},
	}
	results := Semantic(query, candidates)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
}

func TestBestChunkPerDocument(t *testing.T) {
	results := []Scored{
		{Candidate: Candidate{ID: "c1", DocumentID: "doc-a"}, Score: 0.4},
		{Candidate: Candidate{ID: "c2", DocumentID: "doc-a"}, Score: 0.9},
		{Candidate: Candidate{ID: "c3", DocumentID: "doc-b"}, Score: 0.7},
	}
	best := BestChunkPerDocument(results)
	require.Len(t, best, 2)
	assert.Equal(t, "c2", best[0].ID)
	assert.Equal(t, "c3", best[1].ID)
}
