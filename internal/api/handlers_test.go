package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ekenbil/vehicle-sync/internal/config"
	"github.com/ekenbil/vehicle-sync/internal/domain"
)

type fakeRunner struct {
	result *domain.BatchResult
	err    error
	gotReq domain.BatchRequest
}

func (r *fakeRunner) Run(_ context.Context, req domain.BatchRequest) (*domain.BatchResult, error) {
	r.gotReq = req
	return r.result, r.err
}

type fakeStore struct {
	deleteCalls int
	deleted     int64
	gotKeep     []int64
	pingErr     error
}

func (s *fakeStore) DeleteNotIn(_ context.Context, ids []int64) (int64, error) {
	s.deleteCalls++
	s.gotKeep = ids
	return s.deleted, nil
}

func (s *fakeStore) Ping(_ context.Context) error { return s.pingErr }

type fakeSessions struct {
	pingErr error
}

func (s *fakeSessions) Ping(_ context.Context) error { return s.pingErr }

func newTestServer(runner *fakeRunner, store *fakeStore) *Server {
	cfg := &config.Config{BatchSize: 5, ServerPort: "8080"}
	return NewServer(cfg, runner, store, &fakeSessions{}, nil, zap.NewNop())
}

func postBatch(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.handleBatchRequest(rec, req)
	return rec
}

func TestHandleBatchRequestSuccess(t *testing.T) {
	runner := &fakeRunner{result: &domain.BatchResult{
		Results: []domain.ItemResult{
			{UID: "/car/a", Status: domain.StatusSuccess, StorageID: 101},
		},
		HasMore:    true,
		NextOffset: 2,
		Total:      3,
	}}
	store := &fakeStore{}
	srv := newTestServer(runner, store)

	rec := postBatch(t, srv, `{"offset":0,"limit":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if store.deleteCalls != 0 {
		t.Errorf("deleteCalls = %d, want 0 while has_more is true", store.deleteCalls)
	}
	var got domain.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !got.HasMore || got.NextOffset != 2 {
		t.Errorf("got has_more=%v next_offset=%d, want true/2", got.HasMore, got.NextOffset)
	}
}

func TestHandleBatchRequestDefaultsLimit(t *testing.T) {
	runner := &fakeRunner{result: &domain.BatchResult{}}
	srv := newTestServer(runner, &fakeStore{})

	postBatch(t, srv, `{"offset":0}`)

	if runner.gotReq.Limit != 5 {
		t.Errorf("limit = %d, want the configured batch size 5", runner.gotReq.Limit)
	}
}

func TestHandleBatchRequestRejectsNegativeOffset(t *testing.T) {
	runner := &fakeRunner{result: &domain.BatchResult{}}
	srv := newTestServer(runner, &fakeStore{})

	rec := postBatch(t, srv, `{"offset":-1}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleBatchRequestRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("store page unreachable")}
	store := &fakeStore{}
	srv := newTestServer(runner, store)

	rec := postBatch(t, srv, `{"offset":0,"limit":2}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if store.deleteCalls != 0 {
		t.Errorf("deleteCalls = %d, want 0 after a failed run", store.deleteCalls)
	}
}

// A failed item in the final batch must not trigger cleanup: the failed
// vehicle's existing record is absent from all_ids, and deleting by that set
// would drop a car that is still for sale.
func TestHandleBatchRequestFailedItemSkipsCleanup(t *testing.T) {
	runner := &fakeRunner{result: &domain.BatchResult{
		Results: []domain.ItemResult{
			{UID: "/car/a", Status: domain.StatusSuccess, StorageID: 101},
			{UID: "/car/b", Status: domain.StatusError, Reason: "upsert failed"},
		},
		HasMore:    false,
		NextOffset: 2,
		Total:      2,
		AllIDs:     []int64{101},
	}}
	store := &fakeStore{}
	srv := newTestServer(runner, store)

	rec := postBatch(t, srv, `{"offset":0,"limit":2}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if store.deleteCalls != 0 {
		t.Errorf("deleteCalls = %d, want 0 when a batch item failed", store.deleteCalls)
	}
	var payload struct {
		Error string            `json:"error"`
		Item  domain.ItemResult `json:"item"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Error == "" {
		t.Error("response carries no error message")
	}
	if payload.Item.UID != "/car/b" || payload.Item.Reason != "upsert failed" {
		t.Errorf("failing item = %+v, want /car/b with its reason", payload.Item)
	}
}

func TestHandleBatchRequestFinalBatchRunsCleanup(t *testing.T) {
	runner := &fakeRunner{result: &domain.BatchResult{
		Results: []domain.ItemResult{
			{UID: "/car/c", Status: domain.StatusSuccess, StorageID: 103},
		},
		HasMore:    false,
		NextOffset: 3,
		Total:      3,
		AllIDs:     []int64{101, 102, 103},
	}}
	store := &fakeStore{deleted: 2}
	srv := newTestServer(runner, store)

	rec := postBatch(t, srv, `{"offset":2,"limit":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if store.deleteCalls != 1 {
		t.Fatalf("deleteCalls = %d, want 1 on a clean final batch", store.deleteCalls)
	}
	if len(store.gotKeep) != 3 {
		t.Errorf("kept %d ids, want the full reconciliation set of 3", len(store.gotKeep))
	}
}

func TestHandleHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		pgErr      error
		redisErr   error
		wantStatus int
	}{
		{"all healthy", nil, nil, http.StatusOK},
		{"postgres down", errors.New("refused"), nil, http.StatusServiceUnavailable},
		{"redis down", nil, errors.New("refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRunner{result: &domain.BatchResult{}}, &fakeStore{pingErr: tt.pgErr})
			srv.sessions = &fakeSessions{pingErr: tt.redisErr}

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			rec := httptest.NewRecorder()
			srv.handleHealthCheck(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
