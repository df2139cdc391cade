// Package app assembles the pipeline from configuration.
package app

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/config"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/source"
	"go-etl-pipeline/internal/store"
	"go-etl-pipeline/internal/warehouse"
)

// CheckpointBackend is a checkpointer that can also list its records.
type CheckpointBackend interface {
	pipeline.Checkpointer
	List(ctx context.Context) ([]model.Checkpoint, error)
}

// App holds the wired pipeline and the resources it owns.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *store.DB
	Artifacts    *pipeline.ArtifactStore
	Checkpoints  CheckpointBackend
	Orchestrator *pipeline.Orchestrator
}

// New opens the state database and builds the task graph of every domain.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := store.Open(cfg.StateDBPath)
	if err != nil {
		return nil, err
	}

	artifacts := pipeline.NewArtifactStore(cfg.DataDir)
	var checkpoints CheckpointBackend
	switch cfg.CheckpointBackend {
	case config.CheckpointArtifact:
		checkpoints = &pipeline.ArtifactCheckpointer{Artifacts: artifacts}
	default:
		checkpoints = db.Checkpoints()
	}

	session := warehouse.NewSession(WarehouseOpener(cfg.Warehouse), logger.Named("warehouse"))
	graph, err := pipeline.BuildGraph(Sources(cfg, logger), session)
	if err != nil {
		db.Close()
		return nil, err
	}

	orch := &pipeline.Orchestrator{
		Graph:       graph,
		Artifacts:   artifacts,
		Checkpoints: checkpoints,
		Recorder:    db,
		Warehouse:   session,
		Logger:      logger.Named("pipeline"),
	}
	if cfg.ProfileEnabled {
		orch.Profiler = &pipeline.Profiler{}
	}

	logger.Info("pipeline assembled",
		zap.Int("tasks", graph.Len()),
		zap.String("checkpoint_backend", cfg.CheckpointBackend),
		zap.String("warehouse", cfg.Warehouse.Driver),
		zap.String("data_dir", cfg.DataDir))

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		Artifacts:    artifacts,
		Checkpoints:  checkpoints,
		Orchestrator: orch,
	}, nil
}

// Close releases the state database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Sources builds the extractor of every domain.
func Sources(cfg *config.Config, logger *zap.Logger) map[model.Domain]source.Source {
	return map[model.Domain]source.Source{
		model.DomainSales: &source.SalesSource{
			ConnString: cfg.SalesDB.ConnString(),
			Table:      cfg.SalesTable,
			Logger:     logger.Named("sales"),
		},
		model.DomainMarketing: &source.MarketingSource{
			Path:   cfg.MarketingCSVPath,
			Logger: logger.Named("marketing"),
		},
		model.DomainScraping: &source.ScrapingSource{
			Fetcher:  source.NewKompasFetcher(cfg.Scraping.IndexURL, cfg.Scraping.HTTPTimeout),
			Pages:    cfg.Scraping.Pages,
			RawPath:  cfg.Scraping.RawPath,
			LogPath:  cfg.Scraping.LogPath,
			MinDelay: cfg.Scraping.MinDelay,
			MaxDelay: cfg.Scraping.MaxDelay,
			Logger:   logger.Named("scraping"),
		},
	}
}

// WarehouseOpener returns the connector of the configured warehouse driver.
func WarehouseOpener(cfg config.WarehouseConfig) warehouse.Opener {
	switch cfg.Driver {
	case config.WarehouseSQLite:
		return func(ctx context.Context) (warehouse.Sink, error) {
			sink, err := warehouse.OpenSQLite(ctx, cfg.SQLitePath)
			if err != nil {
				return nil, err
			}
			return sink, nil
		}
	case config.WarehousePostgres:
		return func(ctx context.Context) (warehouse.Sink, error) {
			sink, err := warehouse.OpenPostgres(ctx, cfg.Postgres.ConnString())
			if err != nil {
				return nil, err
			}
			return sink, nil
		}
	default:
		return func(context.Context) (warehouse.Sink, error) {
			return nil, eris.Errorf("unknown warehouse driver: %q", cfg.Driver)
		}
	}
}
