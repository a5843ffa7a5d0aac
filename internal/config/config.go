package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like
// "100ms" or "30s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Quality   QualityConfig   `yaml:"quality"`
	Sync      SyncConfig      `yaml:"sync"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	// Driver selects the connector: "pgdriver" (default) or "pq".
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type VectorConfig struct {
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
}

// ProviderConfig describes one embedding backend. Kind is one of
// "openai", "ollama", "mock".
type ProviderConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
	Enabled   bool   `yaml:"enabled"`
}

type EmbeddingConfig struct {
	Active    string           `yaml:"active"`
	Providers []ProviderConfig `yaml:"providers"`
}

type ChunkingConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

type SearchConfig struct {
	TopK             int     `yaml:"top_k"`
	Alpha            float64 `yaml:"alpha"`
	MinSemanticScore float64 `yaml:"min_semantic_score"`
	MinBM25Score     float64 `yaml:"min_bm25_score"`
	Rerank           bool    `yaml:"rerank"`
	CandidateLimit   int     `yaml:"candidate_limit"`
}

type QualityConfig struct {
	MinScore         float64  `yaml:"min_score"`
	Strict           bool     `yaml:"strict"`
	MaxAgeYears      float64  `yaml:"max_age_years"`
	PreferredSources []string `yaml:"preferred_sources"`
}

type SyncConfig struct {
	BatchSize     int      `yaml:"batch_size"`
	BatchDelay    Duration `yaml:"batch_delay"`
	MaxEmbedChars int      `yaml:"max_embed_chars"`
}

type IngestConfig struct {
	ChunkTimeout Duration `yaml:"chunk_timeout"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config usable without a config file. The mock embedding
// provider keeps the whole pipeline functional offline.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "pgdriver"
	}
	if c.Vector.Path == "" {
		c.Vector.Path = "./vectordb"
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "hydro_docs"
	}
	if c.Chunking.MaxSize == 0 {
		c.Chunking.MaxSize = 800
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 100
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = 10
	}
	if c.Search.Alpha == 0 {
		c.Search.Alpha = 0.65
	}
	if c.Search.CandidateLimit == 0 {
		c.Search.CandidateLimit = 200
	}
	if c.Quality.MinScore == 0 {
		c.Quality.MinScore = 0.4
	}
	if c.Quality.MaxAgeYears == 0 {
		c.Quality.MaxAgeYears = 10
	}
	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 50
	}
	if c.Sync.BatchDelay == 0 {
		c.Sync.BatchDelay = Duration(100 * time.Millisecond)
	}
	if c.Sync.MaxEmbedChars == 0 {
		c.Sync.MaxEmbedChars = 8000
	}
	if c.Ingest.ChunkTimeout == 0 {
		c.Ingest.ChunkTimeout = Duration(30 * time.Second)
	}
	if len(c.Embedding.Providers) == 0 {
		c.Embedding.Providers = []ProviderConfig{
			{ID: "mock", Name: "Offline fallback", Kind: "mock", Dimension: 768, Enabled: true},
		}
	}
	if c.Embedding.Active == "" {
		c.Embedding.Active = c.Embedding.Providers[0].ID
	}
}
