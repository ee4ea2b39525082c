package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/domain"
	"github.com/ekenbil/vehicle-sync/internal/fetch"
	"github.com/ekenbil/vehicle-sync/internal/monitoring"
)

// SourceConfig is the read-only configuration one batch call resolves up
// front: where the listing lives and how to walk it.
type SourceConfig struct {
	BaseURL            string
	StorePath          string
	SelectorItemLinks  string
	SelectorPagination string
	SessionTTL         time.Duration
}

// BatchRunner orchestrates one batch of the import: ensure a link list exists
// for the session, slice it, fetch+parse+upsert each item, and round-trip the
// processed-id set through the session cache. The runner itself holds no
// per-run state, so successive batches may come from separate processes.
type BatchRunner struct {
	source   SourceConfig
	fetcher  fetch.Fetcher
	parser   *Parser
	repo     Repository
	sessions SessionCache
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func NewBatchRunner(
	source SourceConfig,
	fetcher fetch.Fetcher,
	parser *Parser,
	repo Repository,
	sessions SessionCache,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *BatchRunner {
	return &BatchRunner{
		source:   source,
		fetcher:  fetcher,
		parser:   parser,
		repo:     repo,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run processes links[offset:offset+limit] for the request's session. A
// discovery failure is fatal for the whole call; per-item failures are data
// in the result and never stop the loop. The final batch (has_more=false)
// destroys the session state and carries the reconciliation set.
func (r *BatchRunner) Run(ctx context.Context, req domain.BatchRequest) (*domain.BatchResult, error) {
	if req.Offset < 0 {
		return nil, fmt.Errorf("offset must be non-negative, got %d", req.Offset)
	}
	if req.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", req.Limit)
	}

	token := req.SessionToken
	if token == "" {
		token = uuid.NewString()
		r.logger.Info("generated new session token", zap.String("session", token))
	}

	links, err := r.ensureLinks(ctx, token)
	if err != nil {
		return nil, err
	}

	batch := sliceLinks(links, req.Offset, req.Limit)
	r.logger.Info("processing batch",
		zap.String("session", token),
		zap.Int("offset", req.Offset),
		zap.Int("limit", req.Limit),
		zap.Int("batch", len(batch)),
		zap.Int("total", len(links)))

	processedIDs, err := r.sessions.GetProcessedIDs(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load processed ids for session %s: %w", token, err)
	}

	results := make([]domain.ItemResult, 0, len(batch))
	var temporarilyFailed []int64

	for _, uid := range batch {
		item := r.processItem(ctx, uid, req.SkipExisting, &temporarilyFailed)
		if r.metrics != nil {
			r.metrics.IncItemsProcessed(item.Status)
		}
		if item.Status != domain.StatusError && item.StorageID != 0 {
			processedIDs = append(processedIDs, item.StorageID)
		}
		results = append(results, item)
	}

	if err := r.sessions.SaveProcessedIDs(ctx, token, processedIDs, r.source.SessionTTL); err != nil {
		return nil, fmt.Errorf("save processed ids for session %s: %w", token, err)
	}

	result := &domain.BatchResult{
		Results:      results,
		HasMore:      req.Offset+req.Limit < len(links),
		NextOffset:   req.Offset + req.Limit,
		Total:        len(links),
		SessionToken: token,
	}

	if !result.HasMore {
		if err := r.sessions.DeleteSession(ctx, token); err != nil {
			r.logger.Warn("failed to delete session state", zap.String("session", token), zap.Error(err))
		}
		result.AllIDs = uniqueIDs(append(processedIDs, temporarilyFailed...))
		r.logger.Info("run complete",
			zap.String("session", token),
			zap.Int("valid_ids", len(result.AllIDs)))
	}

	if r.metrics != nil {
		r.metrics.IncBatches()
	}
	return result, nil
}

// ensureLinks returns the cached link list for the session, running discovery
// exactly once per session when the cache is cold.
func (r *BatchRunner) ensureLinks(ctx context.Context, token string) ([]string, error) {
	links, found, err := r.sessions.GetLinks(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load link list for session %s: %w", token, err)
	}
	if found {
		r.logger.Info("loaded cached link list",
			zap.String("session", token),
			zap.Int("count", len(links)))
		return links, nil
	}

	discovery := NewLinkDiscovery(r.fetcher, r.logger)
	links, err = discovery.Discover(ctx, r.source.BaseURL+r.source.StorePath,
		r.source.SelectorPagination, r.source.SelectorItemLinks)
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncErrors("discovery_failed")
		}
		return nil, err
	}

	if err := r.sessions.SaveLinks(ctx, token, links, r.source.SessionTTL); err != nil {
		return nil, fmt.Errorf("cache link list for session %s: %w", token, err)
	}
	r.logger.Info("cached link list",
		zap.String("session", token),
		zap.Int("count", len(links)))
	return links, nil
}

// processItem handles one link. Permanent fetch failures of an already-stored
// vehicle record its id so reconciliation does not delete a record that is
// merely unreachable right now.
func (r *BatchRunner) processItem(ctx context.Context, uid string, skipExisting bool, temporarilyFailed *[]int64) domain.ItemResult {
	if skipExisting {
		id, err := r.repo.IsDuplicate(ctx, uid)
		if err != nil {
			r.logger.Error("duplicate lookup failed", zap.String("uid", uid), zap.Error(err))
		} else if id != 0 {
			r.logger.Info("skipped existing vehicle", zap.String("uid", uid), zap.Int64("id", id))
			return domain.ItemResult{UID: uid, Status: domain.StatusSkippedExisting, StorageID: id}
		}
	}

	doc, err := r.fetcher.Fetch(ctx, r.source.BaseURL+uid)
	if err != nil {
		r.logger.Error("permanent fetch failure", zap.String("uid", uid), zap.Error(err))
		if r.metrics != nil {
			r.metrics.IncErrors("fetch_failed")
		}
		if id, dupErr := r.repo.IsDuplicate(ctx, uid); dupErr == nil && id != 0 {
			*temporarilyFailed = append(*temporarilyFailed, id)
		}
		return domain.ItemResult{UID: uid, Status: domain.StatusError, Reason: err.Error()}
	}

	vehicle := r.parser.Parse(doc, uid)
	id, err := r.repo.CreateOrUpdate(ctx, vehicle)
	if err != nil {
		r.logger.Error("failed to upsert vehicle",
			zap.String("uid", uid),
			zap.String("title", vehicle.Title),
			zap.Error(err))
		if r.metrics != nil {
			r.metrics.IncErrors("store_failed")
		}
		return domain.ItemResult{UID: uid, Status: domain.StatusError, Reason: err.Error()}
	}

	r.logger.Info("upserted vehicle",
		zap.String("uid", uid),
		zap.String("title", vehicle.Title),
		zap.Int64("id", id))
	return domain.ItemResult{UID: uid, Status: domain.StatusSuccess, StorageID: id}
}

func sliceLinks(links []string, offset, limit int) []string {
	if offset >= len(links) {
		return nil
	}
	end := offset + limit
	if end > len(links) {
		end = len(links)
	}
	return links[offset:end]
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
