package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrokb/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.VectorConfig{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, m.EnsureCollection("test", 3))
	return m
}

func records() []Record {
	return []Record{
		{ID: "1", Vector: []float32{1, 0, 0}, Content: "pérdida de carga", Category: "diseno", Language: "es"},
		{ID: "2", Vector: []float32{0, 1, 0}, Content: "mantenimiento de bombas", Category: "operacion", Language: "es"},
		{ID: "3", Vector: []float32{0.9, 0.1, 0}, Content: "fricción en tubería", Category: "diseno", Language: "es"},
	}
}

func TestUpsertAndSearch(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, records()))

	count, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := m.Search(ctx, []float32{1, 0, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, "3", hits[1].ID)
}

func TestSearchAppliesMetadataFilter(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, records()))

	hits, err := m.Search(ctx, []float32{0, 1, 0}, 3, Filter{Category: "operacion"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].ID)
}

func TestSearchCapsTopKAtCount(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, records()))

	hits, err := m.Search(ctx, []float32{1, 0, 0}, 50, Filter{})
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestSearchEmptyCollection(t *testing.T) {
	m := newTestManager(t)
	hits, err := m.Search(context.Background(), []float32{1, 0, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	m := newTestManager(t)
	err := m.Upsert(context.Background(), []Record{{ID: "bad", Vector: []float32{1, 0}}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestUpsertReplacesExistingRecord(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, records()))
	require.NoError(t, m.Upsert(ctx, []Record{
		{ID: "1", Vector: []float32{0, 0, 1}, Content: "contenido actualizado"},
	}))

	count, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	hits, err := m.Search(ctx, []float32{0, 0, 1}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].ID)
	assert.Equal(t, "contenido actualizado", hits[0].Content)
}

func TestDeleteRemovesRecords(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, records()))
	require.NoError(t, m.Delete(ctx, []string{"1", "3"}))

	count, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResetDropsAllRecords(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, records()))
	require.NoError(t, m.Reset("test", 3))

	count, err := m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The recreated collection accepts writes at the same dimension.
	require.NoError(t, m.Upsert(ctx, records()[:1]))
	count, err = m.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOperationsWithoutCollection(t *testing.T) {
	m, err := NewManager(config.VectorConfig{InMemory: true})
	require.NoError(t, err)

	_, err = m.Search(context.Background(), []float32{1}, 1, Filter{})
	assert.ErrorIs(t, err, ErrNoCollection)
	assert.ErrorIs(t, m.Upsert(context.Background(), records()), ErrNoCollection)
	_, err = m.Stats()
	assert.ErrorIs(t, err, ErrNoCollection)
}

func TestDescribeReportsDimension(t *testing.T) {
	m := newTestManager(t)
	info, err := m.Describe()
	require.NoError(t, err)
	assert.Equal(t, "test", info.Name)
	assert.Equal(t, 3, info.Dimension)
}
