// Command sync performs one full import run, batch by batch, and reconciles
// the store against the final batch's set of valid ids. It is meant to be
// driven by cron.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.InitSchema(ctx); err != nil {
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

	logger.Info("starting full sync", zap.Int("batch_size", cfg.BatchSize))

	req := domain.BatchRequest{Limit: cfg.BatchSize, SkipExisting: true}
	var allIDs []int64
	for {
		result, err := runner.Run(ctx, req)
		if err != nil {
			logger.Error("batch run failed", zap.Error(err))
			os.Exit(1)
		}
		for _, item := range result.Results {
			if item.Status == domain.StatusError {
				// Cached session state stays intact, so a retry of the same
				// offset can pick up where this run stopped.
				logger.Error("halting sync on failed item",
					zap.String("uid", item.UID),
					zap.String("reason", item.Reason),
					zap.String("session", result.SessionToken))
				os.Exit(1)
			}
		}
		if len(result.AllIDs) > 0 {
			allIDs = result.AllIDs
		}
		if !result.HasMore {
			break
		}
		req.Offset = result.NextOffset
		req.SessionToken = result.SessionToken
	}

	deleted, err := store.DeleteNotIn(ctx, allIDs)
	if err != nil {
		logger.Error("reconciliation failed", zap.Error(err))
		os.Exit(1)
	}
	metrics.AddOutdatedDeleted(deleted)
	logger.Info("sync finished",
		zap.Int("valid_ids", len(allIDs)),
		zap.Int64("outdated_deleted", deleted))
}
