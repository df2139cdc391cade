package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"go-etl-pipeline/internal/api"
	"go-etl-pipeline/internal/api/handler"
	"go-etl-pipeline/internal/app"
	"go-etl-pipeline/internal/config"
	"go-etl-pipeline/internal/logging"
	"go-etl-pipeline/pkg/router"
)

// @title ETL Pipeline API
// @version 1.0
// @description Trigger pipeline runs and inspect run history, checkpoints, profiles and artifacts.
// @host localhost:8080
// @BasePath /api/v1
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to assemble pipeline", zap.Error(err))
	}
	defer a.Close()

	h := &handler.RunHandler{
		Store:       a.DB,
		Checkpoints: a.Checkpoints,
		Runner:      a.Orchestrator,
		Artifacts:   a.Artifacts,
		Timeout:     cfg.RunTimeout,
		Logger:      logger.Named("api"),
	}

	// Create router
	r := router.New(logger.Named("http"))

	// Register API routes
	api.RegisterRoutes(r, h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server
	if err := r.Start(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	h.Shutdown()
}
