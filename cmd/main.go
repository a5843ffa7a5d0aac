package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"hydrokb/internal/config"
	"hydrokb/internal/db"
	"hydrokb/internal/embedding"
	"hydrokb/internal/extract"
	"hydrokb/internal/helper"
	"hydrokb/internal/models"
	"hydrokb/internal/rag"
	"hydrokb/internal/vectordb"
	"hydrokb/internal/vectorsync"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	title := flag.String("title", "", "Document title (defaults to one derived from the file)")
	category := flag.String("category", "", "Document category, e.g. normativa, diseno, operacion")
	region := flag.String("region", "", "Region the document or query applies to")
	language := flag.String("language", "", "Document or query language (detected from content when empty)")
	query := flag.String("query", "", "Search query")
	topK := flag.Int("top", 0, "Number of results to return")
	runSync := flag.Bool("sync", false, "Run a vector index sync pass")
	deleteID := flag.String("delete", "", "Delete the document with this id")
	providers := flag.Bool("providers", false, "List embedding providers")
	provider := flag.String("provider", "", "Activate this embedding provider first")
	formulas := flag.Bool("formulas", false, "List documents with formula references")
	regulations := flag.Bool("regulations", false, "List regulations for the given -region")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx := context.Background()
	app, err := setup(ctx, *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing")
	}
	defer app.close()

	if *provider != "" {
		if err := app.registry.SetActive(*provider); err != nil {
			log.Fatal().Err(err).Str("provider", *provider).Msg("Error activating provider")
		}
	}

	switch {
	case *providers:
		listProviders(app)
	case *filePath != "":
		ingestFile(ctx, app, *filePath, *title, *category, *region, *language)
	case *query != "":
		runQuery(ctx, app, *query, *topK, *category, *region)
	case *runSync:
		syncIndex(ctx, app)
	case *deleteID != "":
		if err := app.engine.DeleteDocument(ctx, *deleteID); err != nil {
			log.Fatal().Err(err).Msg("Error deleting document")
		}
	case *formulas:
		listFormulas(ctx, app, *category)
	case *regulations:
		listRegulations(ctx, app, *region)
	default:
		log.Fatal().Msg("Provide -file to ingest, -query to search, -sync, -delete, -providers, -formulas or -regulations")
	}
}

type app struct {
	cfg      *config.Config
	bun      *bun.DB
	store    *db.Store
	vectors  *vectordb.Manager
	registry *embedding.Registry
	engine   *rag.Engine
	syncer   *vectorsync.Syncer
}

func (a *app) close() {
	if a.bun != nil {
		a.bun.Close()
	}
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		cfg = config.Default()
	}
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	bunDB := db.NewDB(sqldb, cfg.Database.Debug)
	if err := db.InitDB(ctx, bunDB); err != nil {
		return nil, err
	}
	store := db.NewStore(bunDB)

	if !cfg.Vector.InMemory {
		if err := helper.CreateFolder(cfg.Vector.Path); err != nil {
			return nil, err
		}
	}
	vectors, err := vectordb.NewManager(cfg.Vector)
	if err != nil {
		return nil, err
	}

	registry := embedding.NewRegistry(cfg.Embedding)
	if err := vectors.EnsureCollection(cfg.Vector.Collection, registry.Dimension()); err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		bun:      bunDB,
		store:    store,
		vectors:  vectors,
		registry: registry,
		engine:   rag.NewEngine(store, vectors, registry, cfg),
		syncer:   vectorsync.New(store, vectors, registry, cfg.Vector.Collection, cfg.Sync),
	}, nil
}

func ingestFile(ctx context.Context, a *app, path, title, category, region, language string) {
	doc, err := extract.Extract(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error extracting document")
	}
	if title == "" {
		title = doc.Title
	}
	if language == "" {
		language = doc.Language
	}

	input := models.DocumentInput{
		Title:    title,
		Content:  doc.Text,
		Category: category,
		Language: language,
	}
	if region != "" {
		input.Regions = []string{region}
	}

	id, err := a.engine.AddDocument(ctx, input, func(p models.Progress) {
		log.Info().Int("current", p.Current).Int("total", p.Total).Msg(p.Message)
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	fmt.Printf("Ingested %q as %s\n", title, id)
}

func runQuery(ctx context.Context, a *app, query string, topK int, category, region string) {
	results, err := a.engine.Search(ctx, query, rag.SearchOptions{
		TopK:     topK,
		Category: category,
		Region:   region,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching")
	}

	if len(results) == 0 {
		fmt.Println("No results passed quality validation.")
		return
	}
	for i, r := range results {
		fmt.Printf("--- %d. [%s] score=%.3f", i+1, r.Method, r.Score)
		if r.Quality != nil {
			fmt.Printf(" quality=%.2f", r.Quality.Overall)
		}
		if r.Degraded {
			fmt.Printf(" (degraded: %s)", r.DegradedReason)
		}
		fmt.Println()
		if t := r.Metadata["title"]; t != "" {
			fmt.Printf("    %s\n", t)
		}
		fmt.Printf("    %s\n", snippet(r.Content, 240))
		if r.Quality != nil {
			for _, rec := range r.Quality.Recommendations {
				fmt.Printf("    > %s\n", rec)
			}
		}
	}
}

func syncIndex(ctx context.Context, a *app) {
	report, err := a.syncer.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error running sync pass")
	}
	helper.PrettyPrint(report)
}

func listProviders(a *app) {
	active := a.registry.Active()
	for _, p := range a.registry.List() {
		marker := " "
		if p.ID == active.ID {
			marker = "*"
		}
		fmt.Printf("%s %-12s %-8s model=%-30s dim=%d\n", marker, p.ID, p.Kind, p.Model, p.Dimension)
	}
}

func listFormulas(ctx context.Context, a *app, category string) {
	docs, err := a.engine.GetFormulas(ctx, category)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing formula documents")
	}
	for _, d := range docs {
		fmt.Printf("%s  %s  [%s]\n", d.ID, d.Title, strings.Join(d.FormulaRefs, ", "))
	}
}

func listRegulations(ctx context.Context, a *app, region string) {
	if region == "" {
		log.Fatal().Msg("-regulations needs a -region")
	}
	docs, err := a.engine.GetRegulations(ctx, region)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing regulations")
	}
	for _, d := range docs {
		fmt.Printf("%s  %s  (v%s)\n", d.ID, d.Title, d.Version)
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
