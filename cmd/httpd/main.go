// Command httpd serves the BARS HTTP API without the background poller.
// Deploy it next to the pipeline process when the dashboard read path needs
// to scale independently of extraction.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/screenwire/bars/internal/api"
	"github.com/screenwire/bars/internal/articles"
	"github.com/screenwire/bars/internal/config"
	"github.com/screenwire/bars/internal/confload"
	"github.com/screenwire/bars/internal/database"
	"github.com/screenwire/bars/internal/extractor"
	"github.com/screenwire/bars/internal/grading"
	"github.com/screenwire/bars/internal/lexicon"
	"github.com/screenwire/bars/internal/logger"
	"github.com/screenwire/bars/internal/nerclient"
	"github.com/screenwire/bars/internal/processor"
	"github.com/screenwire/bars/internal/resolver"
	"github.com/screenwire/bars/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bars-httpd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(confload.GetConfigPath("config.yaml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel := telemetry.New(cfg.Service.Name + "-httpd")

	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	broadcasterStore := database.NewBroadcasterStore(db, log)
	dealStore := database.NewDealStore(db, log)
	snapshotStore := database.NewSnapshotStore(db, log)

	articleStore, err := articles.NewStore(cfg.Elasticsearch, log)
	if err != nil {
		return err
	}

	lex, err := lexicon.New(lexicon.ListsFromConfig(
		cfg.Lexicon.Broadcasters,
		cfg.Lexicon.NonBroadcasterOrg,
		cfg.Lexicon.DealKeywords,
		cfg.Lexicon.GenreKeywords,
		cfg.Lexicon.RegionKeywords,
	))
	if err != nil {
		return fmt.Errorf("build lexicon: %w", err)
	}

	var tagger nerclient.Tagger
	checks := []api.HealthCheck{
		{Name: "postgres", Check: db.PingContext},
		{Name: "elasticsearch", Check: articleStore.Health},
	}
	if cfg.NER.Enabled {
		client := nerclient.New(cfg.NER.ServiceURL, cfg.NER.Timeout, log)
		tagger = client
		checks = append(checks, api.HealthCheck{Name: "ner", Check: client.Health})
	}

	ext := extractor.New(cfg.Extraction, lex, tagger, log, tel)

	registry, err := resolver.NewRegistry(ctx, broadcasterStore, cfg.Resolution, log)
	if err != nil {
		return err
	}
	res := resolver.New(registry, dealStore, cfg.Resolution, log, tel)

	engine, err := grading.NewEngine(broadcasterStore, dealStore, snapshotStore, cfg.Grading, log, tel, tel)
	if err != nil {
		return err
	}

	limiter := processor.NewRateLimiter(cfg.Service.ExtractionsPerSecond, cfg.Service.Concurrency)
	batch := processor.NewBatchProcessor(ext, res, limiter, tel, cfg.Service.Concurrency, log)

	server := api.NewServer(*cfg, api.Deps{
		Extractor:    ext,
		Articles:     articleStore,
		Pipeline:     batch,
		Grader:       engine,
		Broadcasters: broadcasterStore,
		Deals:        dealStore,
		Snapshots:    snapshotStore,
		Telemetry:    tel,
		Checks:       checks,
	}, log)

	log.Info("starting bars httpd",
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port))
	return server.Run(ctx)
}
