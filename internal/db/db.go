package db

import (
	"context"
	"database/sql"
	"math"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"hydrokb/internal/config"
)

// Document is a stored technical document. It owns an ordered collection of
// chunks; deleting a document cascades to them.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Content     string    `bun:"content,notnull"`
	Category    string    `bun:"category"`
	Subcategory string    `bun:"subcategory"`
	Regions     []string  `bun:"regions,array"`
	Keywords    []string  `bun:"keywords,array"`
	FormulaRefs []string  `bun:"formula_refs,array"`
	TableRefs   []string  `bun:"table_refs,array"`
	FigureRefs  []string  `bun:"figure_refs,array"`
	Language    string    `bun:"language"`
	Version     string    `bun:"version"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	Chunks []*Chunk `bun:"rel:has-many,join:id=document_id"`
}

// Chunk is one bounded segment of a document. ChunkIndex values for a
// document are contiguous from 0 and define reconstruction order. The
// embedding column is a typed float8 array tagged with its dimension and the
// provider that produced it, so dimension drift is detectable without
// parsing strings.
type Chunk struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID                int64     `bun:"id,pk,autoincrement"`
	DocumentID        string    `bun:"document_id,notnull"`
	ChunkIndex        int       `bun:"chunk_index,notnull"`
	Content           string    `bun:"content,notnull"`
	Embedding         []float64 `bun:"embedding,array,type:float8[]"`
	EmbeddingDim      int       `bun:"embedding_dim"`
	EmbeddingProvider string    `bun:"embedding_provider"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`

	Document *Document `bun:"rel:belongs-to,join:document_id=id"`
}

// SetEmbedding stores vec with its dimension and provider tag.
func (c *Chunk) SetEmbedding(vec []float32, provider string) {
	c.Embedding = make([]float64, len(vec))
	for i, v := range vec {
		c.Embedding[i] = float64(v)
	}
	c.EmbeddingDim = len(vec)
	c.EmbeddingProvider = provider
}

// Vector returns the stored embedding as float32, reporting false for
// absent, inconsistent or NaN-containing vectors.
func (c *Chunk) Vector() ([]float32, bool) {
	if len(c.Embedding) == 0 || len(c.Embedding) != c.EmbeddingDim {
		return nil, false
	}
	vec := make([]float32, len(c.Embedding))
	for i, v := range c.Embedding {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		vec[i] = float32(v)
	}
	return vec, true
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the configured Postgres connector. pgdriver is the
// default; driver "pq" goes through database/sql with lib/pq instead.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Driver == "pq" {
		return sql.Open("postgres", cfg.DSN)
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := db.NewCreateTable().Model((*Chunk)(nil)).IfNotExists().
		ForeignKey(`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	return err
}
