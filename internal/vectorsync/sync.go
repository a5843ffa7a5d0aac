// Package vectorsync reconciles the relational chunk store with the vector
// index. The relational store is the source of truth; the index is a
// rebuildable projection that drifts when embedding providers change or
// index writes are lost. A sync pass walks the chunk table in stable batches
// and repairs whatever no longer matches the active embedding dimension; a
// collection holding records the chunk table no longer backs is rebuilt from
// scratch.
package vectorsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hydrokb/internal/config"
	"hydrokb/internal/db"
	"hydrokb/internal/embedding"
	"hydrokb/internal/vectordb"
)

// State names the phase a sync pass is in. Transitions are linear:
// Idle -> Scanning -> (Fetching -> Validating -> Reembedding -> Upserting)*
// -> Idle, with the inner cycle repeated per batch.
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateFetching    State = "fetching"
	StateValidating  State = "validating"
	StateReembedding State = "reembedding"
	StateUpserting   State = "upserting"
)

// ErrSyncRunning is returned when a pass is requested while another is active.
var ErrSyncRunning = errors.New("sync pass already running")

// ChunkPager is the slice of the relational store the syncer reads and
// repairs.
type ChunkPager interface {
	CountChunks(ctx context.Context) (int, error)
	ListChunksPage(ctx context.Context, afterID int64, limit int) ([]*db.Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunk *db.Chunk) error
}

// VectorIndex is the slice of the vector database the syncer writes.
type VectorIndex interface {
	EnsureCollection(name string, dimension int) error
	Upsert(ctx context.Context, records []vectordb.Record) error
	Reset(name string, dimension int) error
	Stats() (int, error)
}

// Embedder produces vectors for chunks that need repair.
type Embedder interface {
	Embed(ctx context.Context, text string) embedding.Embedding
	Active() embedding.ProviderInfo
}

// Report summarizes one completed pass.
type Report struct {
	Pass          int
	Scanned       int
	Reembedded    int
	Upserted      int
	FailedBatches int
	ShortCircuit  bool
	Rebuilt       bool
	Duration      time.Duration
}

// Syncer runs reconciliation passes. A mutex serializes passes; concurrent
// Run calls fail fast with ErrSyncRunning instead of queueing.
type Syncer struct {
	store      ChunkPager
	index      VectorIndex
	embedder   Embedder
	collection string
	cfg        config.SyncConfig

	runMu sync.Mutex

	mu    sync.Mutex
	state State
	pass  int
}

func New(store ChunkPager, index VectorIndex, embedder Embedder, collection string, cfg config.SyncConfig) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Syncer{
		store:      store,
		index:      index,
		embedder:   embedder,
		collection: collection,
		cfg:        cfg,
		state:      StateIdle,
	}
}

// State returns the current phase.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Syncer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run executes one full reconciliation pass. Batch-level failures are
// absorbed and counted; only unrecoverable conditions (cursor paging broken,
// collection unusable, context cancelled) abort the pass.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	if !s.runMu.TryLock() {
		return nil, ErrSyncRunning
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	s.pass++
	report := &Report{Pass: s.pass}
	s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.setState(StateIdle)
		report.Duration = time.Since(start)
	}()

	s.setState(StateScanning)
	active := s.embedder.Active()
	if err := s.index.EnsureCollection(s.collection, active.Dimension); err != nil {
		return nil, fmt.Errorf("failed to prepare collection: %w", err)
	}

	chunkCount, err := s.store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	indexCount, err := s.index.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	if indexCount > chunkCount {
		// More index records than chunks means orphans from failed deletes.
		// Rebuild the collection empty and let the pass repopulate it.
		log.Warn().Int("pass", report.Pass).
			Int("chunks", chunkCount).Int("indexed", indexCount).
			Msg("Index holds records without backing chunks, rebuilding collection")
		if err := s.index.Reset(s.collection, active.Dimension); err != nil {
			return nil, fmt.Errorf("failed to rebuild collection: %w", err)
		}
		report.Rebuilt = true
		indexCount = 0
	}
	if chunkCount == indexCount && chunkCount > 0 {
		log.Info().Int("pass", report.Pass).Int("count", chunkCount).
			Msg("Chunk and index counts match, skipping full scan")
		report.ShortCircuit = true
		return report, nil
	}

	log.Info().Int("pass", report.Pass).
		Int("chunks", chunkCount).Int("indexed", indexCount).
		Str("provider", active.ID).Int("dimension", active.Dimension).
		Msg("Starting vector index sync pass")

	limiter := batchLimiter(s.cfg.BatchDelay.Std())
	var cursor int64
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.setState(StateFetching)
		batch, err := s.store.ListChunksPage(ctx, cursor, s.cfg.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to page chunks after id %d: %w", cursor, err)
		}
		if len(batch) == 0 {
			break
		}
		cursor = batch[len(batch)-1].ID
		report.Scanned += len(batch)

		if err := s.syncBatch(ctx, batch, active, report); err != nil {
			report.FailedBatches++
			log.Warn().Err(err).Int64("cursor", cursor).
				Msg("Batch sync failed, continuing with next batch")
		}

		if err := limiter.Wait(ctx); err != nil {
			return report, err
		}
	}

	log.Info().Int("pass", report.Pass).
		Int("scanned", report.Scanned).Int("reembedded", report.Reembedded).
		Int("upserted", report.Upserted).Int("failed_batches", report.FailedBatches).
		Dur("took", time.Since(start)).
		Msg("Vector index sync pass complete")
	return report, nil
}

// syncBatch validates every chunk in the batch, re-embeds the ones whose
// stored vector is absent or has the wrong dimension, persists repaired
// vectors and upserts the whole batch into the index.
func (s *Syncer) syncBatch(ctx context.Context, batch []*db.Chunk, active embedding.ProviderInfo, report *Report) error {
	s.setState(StateValidating)
	records := make([]vectordb.Record, 0, len(batch))
	for _, chunk := range batch {
		vec, ok := chunk.Vector()
		if !ok || len(vec) != active.Dimension {
			s.setState(StateReembedding)
			repaired, err := s.reembed(ctx, chunk, active)
			if err != nil {
				return err
			}
			vec = repaired
			report.Reembedded++
			s.setState(StateValidating)
		}
		records = append(records, s.record(chunk, vec))
	}

	s.setState(StateUpserting)
	if err := s.index.Upsert(ctx, records); err != nil {
		return err
	}
	report.Upserted += len(records)
	return nil
}

func (s *Syncer) reembed(ctx context.Context, chunk *db.Chunk, active embedding.ProviderInfo) ([]float32, error) {
	text := chunk.Content
	if s.cfg.MaxEmbedChars > 0 && len(text) > s.cfg.MaxEmbedChars {
		text = text[:s.cfg.MaxEmbedChars]
	}
	emb := s.embedder.Embed(ctx, text)
	if emb.Degraded {
		log.Warn().Int64("chunk", chunk.ID).Str("reason", emb.Reason).
			Msg("Chunk re-embedded with fallback vector")
	}
	chunk.SetEmbedding(emb.Vector, active.ID)
	if err := s.store.UpdateChunkEmbedding(ctx, chunk); err != nil {
		return nil, fmt.Errorf("failed to persist embedding for chunk %d: %w", chunk.ID, err)
	}
	return emb.Vector, nil
}

func (s *Syncer) record(chunk *db.Chunk, vec []float32) vectordb.Record {
	r := vectordb.Record{
		ID:         fmt.Sprintf("%d", chunk.ID),
		Vector:     vec,
		Content:    chunk.Content,
		InsertedAt: chunk.CreatedAt,
	}
	if doc := chunk.Document; doc != nil {
		r.Title = doc.Title
		r.Category = doc.Category
		r.Language = doc.Language
		if len(doc.Regions) > 0 {
			r.Region = doc.Regions[0]
		}
	}
	return r
}

// batchLimiter yields between batches so a full-table pass does not starve
// foreground queries of the database.
func batchLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}
