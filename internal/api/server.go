package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/config"
	"github.com/ekenbil/vehicle-sync/internal/domain"
	"github.com/ekenbil/vehicle-sync/internal/monitoring"
)

// BatchRunner runs one batch window of the import.
type BatchRunner interface {
	Run(ctx context.Context, req domain.BatchRequest) (*domain.BatchResult, error)
}

// VehicleStore is the subset of the vehicle store the handlers use.
type VehicleStore interface {
	DeleteNotIn(ctx context.Context, ids []int64) (int64, error)
	Ping(ctx context.Context) error
}

// SessionStore is the subset of the session store the handlers use.
type SessionStore interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	runner     BatchRunner
	store      VehicleStore
	sessions   SessionStore
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, runner BatchRunner, vs VehicleStore, ss SessionStore, m *monitoring.Metrics, l *zap.Logger) *Server {
	s := &Server{
		config:   cfg,
		runner:   runner,
		store:    vs,
		sessions: ss,
		metrics:  m,
		logger:   l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // a batch call blocks on sequential fetches
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
