package rag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrokb/internal/db"
	"hydrokb/internal/models"
	"hydrokb/internal/search"
)

func TestToCandidatesCarriesDocumentMetadata(t *testing.T) {
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	chunk := &db.Chunk{
		ID:         7,
		DocumentID: "doc-1",
		ChunkIndex: 2,
		Content:    "pérdida de carga",
		Document: &db.Document{
			ID:          "doc-1",
			Title:       "Manual de diseño",
			Category:    "diseno",
			Language:    "es",
			FormulaRefs: []string{"hazen-williams"},
			CreatedAt:   created,
		},
	}
	chunk.SetEmbedding([]float32{0.1, 0.2}, "mock")

	candidates := toCandidates([]*db.Chunk{chunk})
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "7", c.ID)
	assert.Equal(t, "doc-1", c.DocumentID)
	assert.Equal(t, "Manual de diseño", c.Title)
	assert.Equal(t, created, c.CreatedAt)
	assert.True(t, c.HasRefs)
	assert.Equal(t, []float32{0.1, 0.2}, c.Vector)
	assert.Equal(t, "2", c.Metadata["chunk_index"])
}

func TestToCandidatesSkipsBrokenVectors(t *testing.T) {
	chunk := &db.Chunk{ID: 1, Content: "texto"}
	chunk.SetEmbedding([]float32{1, 2, 3}, "mock")
	chunk.EmbeddingDim = 9

	candidates := toCandidates([]*db.Chunk{chunk})
	require.Len(t, candidates, 1)
	assert.Nil(t, candidates[0].Vector)
}

func TestApplyUpdatesMergesPartialInput(t *testing.T) {
	doc := &db.Document{
		ID:       "doc-1",
		Title:    "Título original",
		Content:  "contenido original",
		Category: "diseno",
		Regions:  []string{"norte"},
		Language: "es",
	}
	applyUpdates(doc, models.DocumentInput{
		Title:   "Título nuevo",
		Regions: []string{"sur", "centro"},
	})

	assert.Equal(t, "Título nuevo", doc.Title)
	assert.Equal(t, "contenido original", doc.Content)
	assert.Equal(t, "diseno", doc.Category)
	assert.Equal(t, []string{"sur", "centro"}, doc.Regions)
	assert.Equal(t, "es", doc.Language)
}

func TestDropBelow(t *testing.T) {
	results := []search.Scored{
		{Candidate: search.Candidate{ID: "a"}, Score: 0.9},
		{Candidate: search.Candidate{ID: "b"}, Score: 0.2},
		{Candidate: search.Candidate{ID: "c"}, Score: 0.5},
	}

	kept := dropBelow(results, 0.5)
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "c", kept[1].ID)

	all := []search.Scored{{Candidate: search.Candidate{ID: "x"}, Score: 0.1}}
	assert.Len(t, dropBelow(all, 0), 1)
}
