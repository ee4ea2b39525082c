package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/domain"
)

// handleBatchRequest runs one batch of the import. A failed item aborts the
// call before any cleanup so a half-imported final batch never triggers
// deletion of records that only look outdated. When the final batch completes
// cleanly, outdated records are removed before the response is written.
func (s *Server) handleBatchRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Limit <= 0 {
		req.Limit = s.config.BatchSize
	}
	if req.Offset < 0 {
		s.respondWithError(w, http.StatusBadRequest, "Offset cannot be negative")
		return
	}

	result, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.logger.Error("batch run failed", zap.Error(err))
		s.respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}

	for _, item := range result.Results {
		if item.Status == domain.StatusError {
			s.logger.Error("batch item failed",
				zap.String("uid", item.UID),
				zap.String("reason", item.Reason))
			s.respondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error": "A vehicle in the batch failed to import or update",
				"item":  item,
			})
			return
		}
	}

	if len(result.AllIDs) > 0 {
		deleted, err := s.store.DeleteNotIn(r.Context(), result.AllIDs)
		if err != nil {
			s.logger.Error("reconciliation failed", zap.Error(err))
			s.respondWithError(w, http.StatusInternalServerError, "Reconciliation failed: "+err.Error())
			return
		}
		if s.metrics != nil {
			s.metrics.AddOutdatedDeleted(deleted)
		}
		s.logger.Info("removed outdated vehicles", zap.Int64("count", deleted))
	}

	s.respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.store.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.sessions.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	if healthStatus["postgres"] != "healthy" || healthStatus["redis"] != "healthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
