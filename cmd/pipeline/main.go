package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-etl-pipeline/internal/app"
	"go-etl-pipeline/internal/config"
	"go-etl-pipeline/internal/logging"
	"go-etl-pipeline/internal/model"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to assemble pipeline", zap.Error(err))
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancel()

	runID := uuid.New().String()
	summary, err := a.Orchestrator.Run(ctx, runID, model.LoadTargets())
	if summary != nil {
		logger.Info("run finished",
			zap.String("run_id", runID),
			zap.String("status", summary.Status),
			zap.Int("executed", summary.Executed),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
			zap.Int("pending", summary.Pending))
	}
	if err != nil {
		logger.Error("run failed", zap.String("run_id", runID), zap.Error(err))
		return err
	}
	return nil
}
