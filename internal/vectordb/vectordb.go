// Package vectordb wraps the chromem-go vector index behind the narrow
// boundary the retrieval engine consumes: collections with a declared
// dimension, batch upserts, filtered similarity search and statistics.
package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"hydrokb/internal/config"
)

const (
	compress        = false
	descriptorsFile = "collections.json"
)

var (
	// ErrIndexUnreachable marks vector index failures the query path must
	// absorb rather than propagate.
	ErrIndexUnreachable = errors.New("vector index unreachable")
	// ErrDimensionMismatch is returned for record vectors whose length does
	// not match the collection's declared dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrNoCollection means EnsureCollection was never called.
	ErrNoCollection = errors.New("no active collection")
)

// Record mirrors a chunk inside the vector index: id, vector and the
// denormalized fields search filters run on.
type Record struct {
	ID         string
	Vector     []float32
	Content    string
	Title      string
	Category   string
	Region     string
	Language   string
	InsertedAt time.Time
}

// Filter is a conjunction of equality matches on record metadata.
type Filter struct {
	Category string
	Region   string
	Language string
}

func (f Filter) where() map[string]string {
	w := map[string]string{}
	if f.Category != "" {
		w["category"] = f.Category
	}
	if f.Region != "" {
		w["region"] = f.Region
	}
	if f.Language != "" {
		w["language"] = f.Language
	}
	if len(w) == 0 {
		return nil
	}
	return w
}

// Hit is one similarity search result.
type Hit struct {
	ID         string
	Content    string
	Similarity float32
	Metadata   map[string]string
}

// CollectionInfo describes a collection; the dimension is recorded when the
// collection is created so a provider switch is detectable as a schema
// mismatch instead of a silent corruption.
type CollectionInfo struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager encapsulates the chromem-go database operations.
type Manager struct {
	mu          sync.Mutex
	db          *chromem.DB
	collection  *chromem.Collection
	path        string
	inMemory    bool
	descriptors map[string]CollectionInfo
}

// NewManager initializes the vector database, persistent unless configured
// in-memory.
func NewManager(cfg config.VectorConfig) (*Manager, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create vector database: %w", err)
		}
	}

	m := &Manager{
		db:          db,
		path:        cfg.Path,
		inMemory:    cfg.InMemory,
		descriptors: map[string]CollectionInfo{},
	}
	if err := m.loadDescriptors(); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureCollection opens (or creates) the collection and pins its dimension.
// A dimension change means the whole index was built for another provider;
// the collection is dropped and recreated before any record-level sync.
func (m *Manager) EnsureCollection(name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if desc, ok := m.descriptors[name]; ok && desc.Dimension != dimension {
		log.Warn().Str("collection", name).
			Int("have", desc.Dimension).Int("want", dimension).
			Msg("Collection dimension mismatch, dropping and recreating")
		if err := m.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		delete(m.descriptors, name)
	}

	c, err := m.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c

	if _, ok := m.descriptors[name]; !ok {
		m.descriptors[name] = CollectionInfo{Name: name, Dimension: dimension, CreatedAt: time.Now()}
		if err := m.saveDescriptors(); err != nil {
			return err
		}
	}
	return nil
}

// Upsert validates record dimensions against the collection and writes the
// batch, replacing any records with the same ids.
func (m *Manager) Upsert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return ErrNoCollection
	}
	if len(records) == 0 {
		return nil
	}

	desc := m.descriptors[m.collection.Name]
	docs := make([]chromem.Document, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != desc.Dimension {
			return fmt.Errorf("%w: record %s has %d, collection %s wants %d",
				ErrDimensionMismatch, r.ID, len(r.Vector), desc.Name, desc.Dimension)
		}
		insertedAt := r.InsertedAt
		if insertedAt.IsZero() {
			insertedAt = time.Now()
		}
		docs = append(docs, chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: r.Vector,
			Metadata: map[string]string{
				"title":       r.Title,
				"category":    r.Category,
				"region":      r.Region,
				"language":    r.Language,
				"inserted_at": insertedAt.UTC().Format(time.RFC3339),
			},
		})
		ids = append(ids, r.ID)
	}

	// Replace-by-id: chromem has no native upsert.
	if err := m.collection.Delete(ctx, nil, nil, ids...); err != nil {
		log.Debug().Err(err).Msg("Pre-upsert delete skipped")
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexUnreachable, err)
	}
	return nil
}

// Search runs a filtered similarity query against the active collection.
func (m *Manager) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return nil, ErrNoCollection
	}

	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       topK,
		Where:          filter.where(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexUnreachable, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	return hits, nil
}

// Reset drops the collection and recreates it empty at the given dimension.
// The syncer uses it to shed records the relational store no longer backs.
func (m *Manager) Reset(name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := m.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	m.collection = c
	m.descriptors[name] = CollectionInfo{Name: name, Dimension: dimension, CreatedAt: time.Now()}
	return m.saveDescriptors()
}

// Delete removes records by id.
func (m *Manager) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return ErrNoCollection
	}
	if len(ids) == 0 {
		return nil
	}
	if err := m.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Stats returns the record count of the active collection.
func (m *Manager) Stats() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return 0, ErrNoCollection
	}
	return m.collection.Count(), nil
}

// Describe returns the active collection's descriptor.
func (m *Manager) Describe() (CollectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return CollectionInfo{}, ErrNoCollection
	}
	return m.descriptors[m.collection.Name], nil
}

func (m *Manager) descriptorsPath() string {
	return filepath.Join(m.path, descriptorsFile)
}

func (m *Manager) loadDescriptors() error {
	if m.inMemory {
		return nil
	}
	data, err := os.ReadFile(m.descriptorsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read collection descriptors: %w", err)
	}
	if err := json.Unmarshal(data, &m.descriptors); err != nil {
		return fmt.Errorf("failed to parse collection descriptors: %w", err)
	}
	return nil
}

func (m *Manager) saveDescriptors() error {
	if m.inMemory {
		return nil
	}
	data, err := json.MarshalIndent(m.descriptors, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(m.descriptorsPath(), data, 0o644); err != nil {
		return fmt.Errorf("failed to save collection descriptors: %w", err)
	}
	return nil
}
