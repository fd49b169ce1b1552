// Package main is the entry point for the Stocktinker valuation service.
// It turns a company's vendor financial exports and daily price history
// into cached, normalized time series, derived ratios and a target-price
// valuation, served over a small HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/stocktinker/internal/clients/morningstar"
	"github.com/aristath/stocktinker/internal/config"
	"github.com/aristath/stocktinker/internal/modules/ratios"
	"github.com/aristath/stocktinker/internal/modules/reporting"
	"github.com/aristath/stocktinker/internal/modules/reports"
	"github.com/aristath/stocktinker/internal/modules/securities"
	"github.com/aristath/stocktinker/internal/server"
	"github.com/aristath/stocktinker/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Stocktinker")

	// Wire the pipeline: vendor client -> cache -> parser -> derivation.
	// Directories are created lazily by the cache and report writer, so
	// nothing touches the filesystem until the first request.
	client := morningstar.NewClient(log)
	cache := reports.NewCache(cfg.DataDir, client, log)
	parser := reports.NewParser(log)
	pipeline := ratios.NewPipeline(log)
	writer := reporting.NewXLSXWriter(cfg.ReportsDir, log)

	svc := securities.NewService(cache, parser, pipeline, writer, securities.Options{
		ProjectionYears: cfg.ProjectionYears,
		TargetYield:     cfg.TargetYield,
		GrowthLogShift:  cfg.GrowthLogShift,
	}, log)

	srv := server.New(server.Config{
		Log:        log,
		Securities: svc,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Stocktinker started")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
