package vectorsync

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrokb/internal/config"
	"hydrokb/internal/db"
	"hydrokb/internal/embedding"
	"hydrokb/internal/vectordb"
)

const testDim = 768

type fakeStore struct {
	chunks  []*db.Chunk
	updated []int64
}

func (f *fakeStore) CountChunks(_ context.Context) (int, error) {
	return len(f.chunks), nil
}

func (f *fakeStore) ListChunksPage(_ context.Context, afterID int64, limit int) ([]*db.Chunk, error) {
	var page []*db.Chunk
	for _, c := range f.chunks {
		if c.ID > afterID {
			page = append(page, c)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func (f *fakeStore) UpdateChunkEmbedding(_ context.Context, chunk *db.Chunk) error {
	f.updated = append(f.updated, chunk.ID)
	return nil
}

type fakeIndex struct {
	records    map[string]vectordb.Record
	ensured    []int
	resets     int
	failNext   int
	upsertErrs int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: map[string]vectordb.Record{}}
}

func (f *fakeIndex) EnsureCollection(_ string, dimension int) error {
	f.ensured = append(f.ensured, dimension)
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, records []vectordb.Record) error {
	if f.failNext > 0 {
		f.failNext--
		f.upsertErrs++
		return errors.New("index write failed")
	}
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeIndex) Reset(_ string, _ int) error {
	f.resets++
	f.records = map[string]vectordb.Record{}
	return nil
}

func (f *fakeIndex) Stats() (int, error) {
	return len(f.records), nil
}

func testRegistry(t *testing.T) *embedding.Registry {
	t.Helper()
	return embedding.NewRegistry(config.EmbeddingConfig{
		Active: "mock",
		Providers: []config.ProviderConfig{
			{ID: "mock", Kind: "mock", Dimension: testDim, Enabled: true},
		},
	})
}

func chunkWithVector(id int64, content string, dim int) *db.Chunk {
	c := &db.Chunk{ID: id, DocumentID: "doc", Content: content}
	if dim > 0 {
		c.SetEmbedding(embedding.MockVector(content, dim), "old")
	}
	return c
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{BatchSize: 2, MaxEmbedChars: 8000}
}

func TestRunRepairsStaleAndMissingVectors(t *testing.T) {
	store := &fakeStore{chunks: []*db.Chunk{
		chunkWithVector(1, "tubería de PVC", testDim),
		chunkWithVector(2, "pérdida de carga", 384),
		chunkWithVector(3, "coeficiente de rugosidad", 0),
	}}
	index := newFakeIndex()
	s := New(store, index, testRegistry(t), "hydro_docs", testSyncConfig())

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Pass)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Reembedded)
	assert.Equal(t, 3, report.Upserted)
	assert.Equal(t, 0, report.FailedBatches)
	assert.False(t, report.ShortCircuit)

	assert.ElementsMatch(t, []int64{2, 3}, store.updated)
	assert.Equal(t, []int{testDim}, index.ensured)
	require.Len(t, index.records, 3)
	for id, r := range index.records {
		assert.Len(t, r.Vector, testDim, "record %s", id)
	}

	// Repaired chunks carry the active provider tag and dimension.
	assert.Equal(t, testDim, store.chunks[1].EmbeddingDim)
	assert.Equal(t, "mock", store.chunks[1].EmbeddingProvider)
}

func TestRunSecondPassShortCircuits(t *testing.T) {
	store := &fakeStore{chunks: []*db.Chunk{
		chunkWithVector(1, "uno", testDim),
		chunkWithVector(2, "dos", 384),
	}}
	index := newFakeIndex()
	s := New(store, index, testRegistry(t), "hydro_docs", testSyncConfig())

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Reembedded)

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Pass)
	assert.True(t, second.ShortCircuit)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, 0, second.Reembedded)
}

func TestRunRebuildsWhenIndexHoldsOrphans(t *testing.T) {
	store := &fakeStore{chunks: []*db.Chunk{
		chunkWithVector(1, "tubería de PVC", testDim),
	}}
	index := newFakeIndex()
	// A record left behind by a failed delete has no backing chunk.
	index.records["1"] = vectordb.Record{ID: "1"}
	index.records["99"] = vectordb.Record{ID: "99"}
	s := New(store, index, testRegistry(t), "hydro_docs", testSyncConfig())

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Rebuilt)
	assert.Equal(t, 1, index.resets)

	require.Len(t, index.records, 1)
	_, ok := index.records["1"]
	assert.True(t, ok, "the backed record must be reindexed after the rebuild")

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.ShortCircuit)
	assert.False(t, second.Rebuilt)
}

func TestRunAbsorbsBatchFailures(t *testing.T) {
	store := &fakeStore{chunks: []*db.Chunk{
		chunkWithVector(1, "uno", testDim),
		chunkWithVector(2, "dos", testDim),
		chunkWithVector(3, "tres", testDim),
		chunkWithVector(4, "cuatro", testDim),
	}}
	index := newFakeIndex()
	index.failNext = 1
	s := New(store, index, testRegistry(t), "hydro_docs", testSyncConfig())

	report, err := s.Run(context.Background())
	require.NoError(t, err, "a failed batch must not abort the pass")

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 1, report.FailedBatches)
	assert.Equal(t, 2, report.Upserted)
	assert.Len(t, index.records, 2)
}

func TestRunTruncatesOversizedChunksBeforeEmbedding(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	store := &fakeStore{chunks: []*db.Chunk{
		chunkWithVector(5, string(long), 0),
	}}
	index := newFakeIndex()
	cfg := testSyncConfig()
	cfg.MaxEmbedChars = 50
	s := New(store, index, testRegistry(t), "hydro_docs", cfg)

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	want := embedding.MockVector(string(long[:50]), testDim)
	got, ok := store.chunks[0].Vector()
	require.True(t, ok)
	assert.Equal(t, want, got)

	rec, ok := index.records[strconv.FormatInt(5, 10)]
	require.True(t, ok)
	// The index record keeps the full content; only the embedding input is
	// truncated.
	assert.Equal(t, string(long), rec.Content)
}

func TestRunStateReturnsToIdle(t *testing.T) {
	store := &fakeStore{chunks: []*db.Chunk{chunkWithVector(1, "uno", testDim)}}
	s := New(store, newFakeIndex(), testRegistry(t), "hydro_docs", testSyncConfig())

	assert.Equal(t, StateIdle, s.State())
	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateIdle, s.State())
}
