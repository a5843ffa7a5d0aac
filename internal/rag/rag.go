// Package rag wires the retrieval pipeline together: ingestion (chunk,
// embed, store, index), hybrid search with quality validation, and the
// domain lookups built on top of the document store.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"hydrokb/internal/chunker"
	"hydrokb/internal/config"
	"hydrokb/internal/db"
	"hydrokb/internal/embedding"
	"hydrokb/internal/helper"
	"hydrokb/internal/models"
	"hydrokb/internal/quality"
	"hydrokb/internal/search"
	"hydrokb/internal/vectordb"
)

// ErrEmptyDocument is returned when a document has no title or no content.
var ErrEmptyDocument = errors.New("document needs a title and content")

// Engine is the retrieval engine facade the CLI talks to.
type Engine struct {
	store     *db.Store
	vectors   *vectordb.Manager
	providers *embedding.Registry
	chunker   *chunker.Chunker
	validator *quality.Validator
	cfg       *config.Config
}

func NewEngine(store *db.Store, vectors *vectordb.Manager, providers *embedding.Registry, cfg *config.Config) *Engine {
	return &Engine{
		store:     store,
		vectors:   vectors,
		providers: providers,
		chunker: chunker.New(
			chunker.WithMaxSize(cfg.Chunking.MaxSize),
			chunker.WithOverlap(cfg.Chunking.Overlap),
		),
		validator: quality.New(quality.Options{
			MinScore:         cfg.Quality.MinScore,
			Strict:           cfg.Quality.Strict,
			MaxAgeYears:      cfg.Quality.MaxAgeYears,
			PreferredSources: cfg.Quality.PreferredSources,
		}),
		cfg: cfg,
	}
}

// SearchOptions narrow a query. Zero values take the configured defaults.
type SearchOptions struct {
	TopK     int
	Category string
	Region   string
	Language string
	// Alpha overrides the configured semantic weight when in (0, 1].
	Alpha float64
	// MinSemanticScore and MinBM25Score override the configured floors when
	// positive.
	MinSemanticScore float64
	MinBM25Score     float64
	// DisableRerank skips the heuristic re-ranking pass for this query.
	DisableRerank bool
	// SkipQuality returns the raw fused ranking without validation filtering.
	SkipQuality bool
}

func (o SearchOptions) alpha(cfg *config.Config) float64 {
	if o.Alpha > 0 && o.Alpha <= 1 {
		return o.Alpha
	}
	return cfg.Search.Alpha
}

func (o SearchOptions) minSemantic(cfg *config.Config) float64 {
	if o.MinSemanticScore > 0 {
		return o.MinSemanticScore
	}
	return cfg.Search.MinSemanticScore
}

func (o SearchOptions) minBM25(cfg *config.Config) float64 {
	if o.MinBM25Score > 0 {
		return o.MinBM25Score
	}
	return cfg.Search.MinBM25Score
}

// Search runs the hybrid retrieval pipeline: embed the query, score the
// candidate corpus lexically and semantically, fuse, optionally re-rank, and
// validate quality. A broken vector index degrades the query to lexical-only
// instead of failing it.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.Search.TopK
	}

	queryTerms := search.Tokenize(query)
	if len(queryTerms) == 0 {
		return nil, errors.New("query has no searchable terms")
	}

	queryEmb := e.providers.Embed(ctx, query)
	if queryEmb.Degraded {
		log.Warn().Str("reason", queryEmb.Reason).Msg("Query embedded with fallback vector")
	}

	filter := db.Filter{Category: opts.Category, Region: opts.Region, Language: opts.Language}
	chunks, err := e.store.CandidateChunks(ctx, filter, e.cfg.Search.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	candidates := toCandidates(chunks)

	lexical := search.BM25(queryTerms, candidates)
	lexical = dropBelow(lexical, opts.minBM25(e.cfg))

	semantic := e.semanticScores(ctx, queryEmb.Vector, candidates, opts)
	semantic = dropBelow(semantic, opts.minSemantic(e.cfg))

	fused := search.Fuse(lexical, semantic, opts.alpha(e.cfg))
	fused = search.BestChunkPerDocument(fused)

	if e.cfg.Search.Rerank && !opts.DisableRerank && len(fused) > topK {
		reranked, err := search.Rerank(query, fused, topK)
		if err != nil {
			log.Warn().Err(err).Msg("Re-ranking failed, keeping fused order")
		} else {
			fused = reranked
		}
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}

	if opts.SkipQuality {
		return e.toResults(fused, nil, queryEmb), nil
	}
	validated := e.validator.Validate(query, fused)
	scored := make([]search.Scored, len(validated))
	metrics := make([]*models.QualityMetrics, len(validated))
	for i, v := range validated {
		scored[i] = v.Scored
		m := v.Metrics
		metrics[i] = &m
	}
	return e.toResults(scored, metrics, queryEmb), nil
}

// semanticScores prefers the vector index for similarity ranking and falls
// back to in-process cosine over candidate vectors when the index is
// unreachable.
func (e *Engine) semanticScores(ctx context.Context, queryVec []float32, candidates []search.Candidate, opts SearchOptions) []search.Scored {
	if len(queryVec) == 0 {
		return nil
	}
	hits, err := e.vectors.Search(ctx, queryVec, e.cfg.Search.CandidateLimit, vectordb.Filter{
		Category: opts.Category,
		Region:   opts.Region,
		Language: opts.Language,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Vector index unavailable, scoring candidates in process")
		return search.Semantic(queryVec, candidates)
	}

	byID := make(map[string]search.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	var results []search.Scored
	for _, h := range hits {
		c, ok := byID[h.ID]
		if !ok {
			// Indexed record outside the candidate window; the filter
			// already matched it, so carry what the index returned.
			c = search.Candidate{ID: h.ID, Content: h.Content, Metadata: h.Metadata}
			if h.Metadata != nil {
				c.Title = h.Metadata["title"]
			}
		}
		results = append(results, search.Scored{
			Candidate: c,
			Score:     float64(h.Similarity),
			Method:    search.MethodSemantic,
		})
	}
	return results
}

// AddDocument chunks, embeds, stores and indexes a document, returning its
// id. The first chunk is embedded without the degraded safety net when the
// active provider is usable, so misconfiguration surfaces before anything is
// written. Progress is reported after each embedded chunk.
func (e *Engine) AddDocument(ctx context.Context, input models.DocumentInput, progress func(models.Progress)) (string, error) {
	if input.Title == "" || input.Content == "" {
		return "", ErrEmptyDocument
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return "", err
	}

	parts := e.chunker.Split(input.Content)
	if len(parts) == 0 {
		return "", ErrEmptyDocument
	}

	active := e.providers.Active()
	embeddings := make([]embedding.Embedding, len(parts))
	for i, part := range parts {
		chunkCtx, cancel := context.WithTimeout(ctx, e.cfg.Ingest.ChunkTimeout.Std())
		if i == 0 && e.providers.ActiveUsable() {
			vec, err := e.providers.TryEmbed(chunkCtx, part)
			cancel()
			if err != nil {
				return "", fmt.Errorf("embedding provider %q failed on the first chunk, check its configuration: %w", active.ID, err)
			}
			embeddings[i] = embedding.Embedding{Vector: vec}
		} else {
			embeddings[i] = e.providers.Embed(chunkCtx, part)
			cancel()
		}
		if progress != nil {
			progress(models.Progress{
				Current: i + 1,
				Total:   len(parts),
				Message: fmt.Sprintf("embedded chunk %d/%d", i+1, len(parts)),
			})
		}
	}

	now := input.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	doc := &db.Document{
		ID:          id,
		Title:       input.Title,
		Content:     input.Content,
		Category:    input.Category,
		Subcategory: input.Subcategory,
		Regions:     input.Regions,
		Keywords:    input.Keywords,
		FormulaRefs: input.FormulaRefs,
		TableRefs:   input.TableRefs,
		FigureRefs:  input.FigureRefs,
		Language:    input.Language,
		Version:     input.Version,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to store document: %w", err)
	}

	chunks := make([]*db.Chunk, len(parts))
	for i, part := range parts {
		c := &db.Chunk{DocumentID: id, ChunkIndex: i, Content: part}
		c.SetEmbedding(embeddings[i].Vector, active.ID)
		chunks[i] = c
	}
	if err := e.store.InsertChunks(ctx, chunks); err != nil {
		return "", fmt.Errorf("failed to store chunks: %w", err)
	}

	e.indexChunks(ctx, doc, chunks)
	log.Info().Str("document", id).Int("chunks", len(chunks)).Msg("Document ingested")
	return id, nil
}

// UpdateDocument merges the provided fields into a stored document. Zero
// fields keep their current values. A content change re-chunks and re-embeds
// the document; stale index records are removed before the new ones are
// written.
func (e *Engine) UpdateDocument(ctx context.Context, id string, input models.DocumentInput) error {
	doc, err := e.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	contentChanged := input.Content != "" && input.Content != doc.Content
	applyUpdates(doc, input)
	if err := e.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if !contentChanged {
		log.Info().Str("document", id).Msg("Document metadata updated")
		return nil
	}

	old, err := e.store.ChunksForDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load existing chunks: %w", err)
	}
	if err := e.removeFromIndex(ctx, old); err != nil {
		log.Warn().Err(err).Str("document", id).Msg("Failed to drop stale index records, sync will repair")
	}
	if err := e.store.DeleteChunks(ctx, id); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	parts := e.chunker.Split(doc.Content)
	active := e.providers.Active()
	chunks := make([]*db.Chunk, len(parts))
	for i, part := range parts {
		chunkCtx, cancel := context.WithTimeout(ctx, e.cfg.Ingest.ChunkTimeout.Std())
		emb := e.providers.Embed(chunkCtx, part)
		cancel()
		c := &db.Chunk{DocumentID: id, ChunkIndex: i, Content: part}
		c.SetEmbedding(emb.Vector, active.ID)
		chunks[i] = c
	}
	if err := e.store.InsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	e.indexChunks(ctx, doc, chunks)
	log.Info().Str("document", id).Int("chunks", len(chunks)).Msg("Document content updated")
	return nil
}

func applyUpdates(doc *db.Document, input models.DocumentInput) {
	if input.Title != "" {
		doc.Title = input.Title
	}
	if input.Content != "" {
		doc.Content = input.Content
	}
	if input.Category != "" {
		doc.Category = input.Category
	}
	if input.Subcategory != "" {
		doc.Subcategory = input.Subcategory
	}
	if input.Regions != nil {
		doc.Regions = input.Regions
	}
	if input.Keywords != nil {
		doc.Keywords = input.Keywords
	}
	if input.FormulaRefs != nil {
		doc.FormulaRefs = input.FormulaRefs
	}
	if input.TableRefs != nil {
		doc.TableRefs = input.TableRefs
	}
	if input.FigureRefs != nil {
		doc.FigureRefs = input.FigureRefs
	}
	if input.Language != "" {
		doc.Language = input.Language
	}
	if input.Version != "" {
		doc.Version = input.Version
	}
}

// DeleteDocument removes a document everywhere: its chunks go via the
// relational cascade, its index records explicitly.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	chunks, err := e.store.ChunksForDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := e.removeFromIndex(ctx, chunks); err != nil {
		log.Warn().Err(err).Str("document", id).Msg("Failed to drop index records, sync will repair")
	}
	log.Info().Str("document", id).Msg("Document deleted")
	return nil
}

// GetDocument returns a stored document by id.
func (e *Engine) GetDocument(ctx context.Context, id string) (*db.Document, error) {
	return e.store.GetDocument(ctx, id)
}

// GetFormulas lists documents that carry formula references, optionally
// narrowed to a category.
func (e *Engine) GetFormulas(ctx context.Context, category string) ([]*db.Document, error) {
	return e.store.FormulaDocuments(ctx, category)
}

// GetRegulations lists regulatory documents applicable to a region.
func (e *Engine) GetRegulations(ctx context.Context, region string) ([]*db.Document, error) {
	return e.store.RegulationDocuments(ctx, region)
}

// indexChunks writes chunk vectors to the index. Index failures are logged
// and absorbed; the relational store already holds the truth and the next
// sync pass repairs the projection.
func (e *Engine) indexChunks(ctx context.Context, doc *db.Document, chunks []*db.Chunk) {
	if err := e.vectors.EnsureCollection(e.cfg.Vector.Collection, e.providers.Dimension()); err != nil {
		log.Warn().Err(err).Msg("Vector collection unavailable, skipping indexing")
		return
	}
	region := ""
	if len(doc.Regions) > 0 {
		region = doc.Regions[0]
	}
	records := make([]vectordb.Record, 0, len(chunks))
	for _, c := range chunks {
		vec, ok := c.Vector()
		if !ok {
			continue
		}
		records = append(records, vectordb.Record{
			ID:         strconv.FormatInt(c.ID, 10),
			Vector:     vec,
			Content:    c.Content,
			Title:      doc.Title,
			Category:   doc.Category,
			Region:     region,
			Language:   doc.Language,
			InsertedAt: c.CreatedAt,
		})
	}
	if err := e.vectors.Upsert(ctx, records); err != nil {
		log.Warn().Err(err).Str("document", doc.ID).Msg("Vector indexing failed, sync will repair")
	}
}

func (e *Engine) removeFromIndex(ctx context.Context, chunks []*db.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = strconv.FormatInt(c.ID, 10)
	}
	return e.vectors.Delete(ctx, ids)
}

func (e *Engine) toResults(scored []search.Scored, metrics []*models.QualityMetrics, queryEmb embedding.Embedding) []models.SearchResult {
	results := make([]models.SearchResult, len(scored))
	for i, s := range scored {
		r := models.SearchResult{
			ID:       s.ID,
			Content:  s.Content,
			Score:    s.Score,
			Method:   s.Method,
			Metadata: s.Metadata,
		}
		if queryEmb.Degraded {
			r.Degraded = true
			r.DegradedReason = queryEmb.Reason
		}
		if metrics != nil && metrics[i] != nil {
			r.Quality = metrics[i]
		}
		results[i] = r
	}
	return results
}

func toCandidates(chunks []*db.Chunk) []search.Candidate {
	candidates := make([]search.Candidate, 0, len(chunks))
	for _, c := range chunks {
		cand := search.Candidate{
			ID:        strconv.FormatInt(c.ID, 10),
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}
		if vec, ok := c.Vector(); ok {
			cand.Vector = vec
		}
		if doc := c.Document; doc != nil {
			cand.DocumentID = doc.ID
			cand.Title = doc.Title
			cand.CreatedAt = doc.CreatedAt
			cand.HasRefs = len(doc.FormulaRefs)+len(doc.TableRefs)+len(doc.FigureRefs) > 0
			cand.Metadata = map[string]string{
				"document_id": doc.ID,
				"title":       doc.Title,
				"category":    doc.Category,
				"language":    doc.Language,
				"chunk_index": strconv.Itoa(c.ChunkIndex),
			}
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

func dropBelow(results []search.Scored, min float64) []search.Scored {
	if min <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Score >= min {
			kept = append(kept, r)
		}
	}
	return kept
}
