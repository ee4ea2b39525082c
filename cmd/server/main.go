package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/api"
	"github.com/ekenbil/vehicle-sync/internal/config"
	"github.com/ekenbil/vehicle-sync/internal/domain"
	"github.com/ekenbil/vehicle-sync/internal/fetch"
	"github.com/ekenbil/vehicle-sync/internal/monitoring"
	"github.com/ekenbil/vehicle-sync/internal/scrape"
	"github.com/ekenbil/vehicle-sync/internal/storage"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	store, err := storage.NewVehicleStore(cfg.PostgresURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer store.Close()
	if err := store.InitSchema(context.Background()); err != nil {
		logger.Fatal("failed to init schema", zap.Error(err))
	}
	if cfg.DownloadImages {
		store.WithImageFetcher(storage.NewImageFetcher(
			time.Duration(cfg.FetchTimeout)*time.Second,
			cfg.RetryCount, cfg.RetryDelay(), logger))
	}

	sessions := storage.NewRedisSessionStore(cfg.RedisAddr)
	metrics := monitoring.NewMetrics()

	fetcher := fetch.NewRetryingFetcher(
		fetch.NewHTTPFetcher(time.Duration(cfg.FetchTimeout)*time.Second),
		cfg.RetryCount, cfg.RetryDelay(), metrics, logger)

	runner := scrape.NewBatchRunner(
		scrape.SourceConfig{
			BaseURL:            cfg.SourceBaseURL,
			StorePath:          cfg.SourceStorePath,
			SelectorItemLinks:  cfg.SelectorItemLinks,
			SelectorPagination: cfg.SelectorPagination,
			SessionTTL:         cfg.SessionTTL(),
		},
		fetcher,
		scrape.NewParser(domain.DefaultFieldMap()),
		store, sessions, metrics, logger)

	server := api.NewServer(cfg, runner, store, sessions, metrics, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
