package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a document id has no row.
var ErrNotFound = errors.New("document not found")

// Filter narrows candidate selection to matching document metadata. Empty
// fields match everything.
type Filter struct {
	Category string
	Region   string
	Language string
}

// Store wraps the bun handle with the operations the retrieval engine needs.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) InsertDocument(ctx context.Context, doc *Document) error {
	_, err := s.db.NewInsert().Model(doc).Exec(ctx)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	doc := new(Document)
	err := s.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, doc *Document) error {
	doc.UpdatedAt = time.Now()
	res, err := s.db.NewUpdate().Model(doc).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes the document; chunks go with it via the cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*Document)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *Store) InsertChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().Model(&chunks).Exec(ctx)
	return err
}

// ChunksForDocument returns a document's chunks in reconstruction order.
func (s *Store) ChunksForDocument(ctx context.Context, documentID string) ([]*Chunk, error) {
	var chunks []*Chunk
	err := s.db.NewSelect().Model(&chunks).
		Where("c.document_id = ?", documentID).
		OrderExpr("c.chunk_index ASC").
		Scan(ctx)
	return chunks, err
}

// DeleteChunks removes all chunks of a document, used before re-chunking on
// content updates.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.db.NewDelete().Model((*Chunk)(nil)).Where("document_id = ?", documentID).Exec(ctx)
	return err
}

func (s *Store) CountChunks(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Chunk)(nil)).Count(ctx)
}

// ListChunksPage returns up to limit chunks with id greater than afterID,
// ordered by primary key. The stable cursor lets the sync pass page through
// the whole table without loading it into memory.
func (s *Store) ListChunksPage(ctx context.Context, afterID int64, limit int) ([]*Chunk, error) {
	var chunks []*Chunk
	err := s.db.NewSelect().Model(&chunks).
		Relation("Document").
		Where("c.id > ?", afterID).
		OrderExpr("c.id ASC").
		Limit(limit).
		Scan(ctx)
	return chunks, err
}

// UpdateChunkEmbedding persists a freshly generated vector back to the
// record store.
func (s *Store) UpdateChunkEmbedding(ctx context.Context, chunk *Chunk) error {
	_, err := s.db.NewUpdate().Model(chunk).
		Column("embedding", "embedding_dim", "embedding_provider").
		WherePK().
		Exec(ctx)
	return err
}

// CandidateChunks fetches the scoring corpus for a query, joined with the
// owning documents and narrowed by the metadata filter.
func (s *Store) CandidateChunks(ctx context.Context, f Filter, limit int) ([]*Chunk, error) {
	var chunks []*Chunk
	q := s.db.NewSelect().Model(&chunks).
		Relation("Document").
		OrderExpr("c.id ASC").
		Limit(limit)
	if f.Category != "" {
		q = q.Where("document.category = ?", f.Category)
	}
	if f.Region != "" {
		q = q.Where("? = ANY(document.regions)", f.Region)
	}
	if f.Language != "" {
		q = q.Where("document.language = ?", f.Language)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return chunks, nil
}

// FormulaDocuments lists documents carrying formula references, optionally
// narrowed to a category.
func (s *Store) FormulaDocuments(ctx context.Context, category string) ([]*Document, error) {
	var docs []*Document
	q := s.db.NewSelect().Model(&docs).
		Where("array_length(d.formula_refs, 1) > 0").
		OrderExpr("d.title ASC")
	if category != "" {
		q = q.Where("d.category = ?", category)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return docs, nil
}

// RegulationDocuments lists regulatory documents applicable to a region.
func (s *Store) RegulationDocuments(ctx context.Context, region string) ([]*Document, error) {
	var docs []*Document
	err := s.db.NewSelect().Model(&docs).
		Where("d.category = ?", "normativa").
		Where("? = ANY(d.regions)", region).
		OrderExpr("d.title ASC").
		Scan(ctx)
	return docs, err
}
