package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turireg/apartment-catalog-server/internal/catalog"
	"github.com/turireg/apartment-catalog-server/internal/logger"
	"github.com/turireg/apartment-catalog-server/internal/remote"
	"github.com/turireg/apartment-catalog-server/internal/runlog"
	pkgsync "github.com/turireg/apartment-catalog-server/internal/sync"
)

const (
	defaultRunsLimit = 10
	maxRunsLimit     = 100
)

// Routes holds the handler dependencies
type Routes struct {
	manager pkgsync.Manager
	repo    catalog.Repository
	runs    runlog.Store
	remote  remote.Client
}

// NewRoutes creates a Routes instance with the provided dependencies
func NewRoutes(manager pkgsync.Manager, repo catalog.Repository, runs runlog.Store, remoteClient remote.Client) *Routes {
	return &Routes{
		manager: manager,
		repo:    repo,
		runs:    runs,
		remote:  remoteClient,
	}
}

// SyncStatusResponse reports the orchestrator state
type SyncStatusResponse struct {
	Locked          bool       `json:"locked"`
	LockAcquiredAt  *time.Time `json:"lock_acquired_at,omitempty"`
	LockStale       bool       `json:"lock_stale"`
	LastRunFinished *time.Time `json:"last_run_finished,omitempty"`
	Due             bool       `json:"due"`
	Reason          string     `json:"reason"`
}

// SyncRunResponse is one persisted run outcome
type SyncRunResponse struct {
	ID             uuid.UUID `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	RecordsSeen    int       `json:"records_seen"`
	RecordsCreated int       `json:"records_created"`
	RecordsUpdated int       `json:"records_updated"`
	ErrorCount     int       `json:"error_count"`
	Succeeded      bool      `json:"succeeded"`
	LogLines       []string  `json:"log_lines,omitempty"`
}

// CountResponse reports a single catalog statistic
type CountResponse struct {
	Count int64 `json:"count"`
}

// HealthResponse reports service or dependency health
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// getHealth handles GET /health
func (rr *Routes) getHealth(w http.ResponseWriter, _ *http.Request) {
	rr.writeJSONResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// getRemoteHealth handles GET /health/remote with a 1-record probe
// against the open-data source
func (rr *Routes) getRemoteHealth(w http.ResponseWriter, r *http.Request) {
	if !rr.remote.TestConnection(r.Context()) {
		rr.writeJSONResponse(w, http.StatusServiceUnavailable, HealthResponse{Status: "unreachable"})
		return
	}
	rr.writeJSONResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// getSyncStatus handles GET /api/v1/sync/status
func (rr *Routes) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := rr.manager.Status(r.Context())
	if err != nil {
		logger.Errorf("Failed to get sync status: %v", err)
		rr.writeErrorResponse(w, "Failed to get sync status", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, http.StatusOK, SyncStatusResponse{
		Locked:          status.Locked,
		LockAcquiredAt:  status.LockAcquiredAt,
		LockStale:       status.LockStale,
		LastRunFinished: status.LastRunFinished,
		Due:             status.Due,
		Reason:          status.Reason,
	})
}

// postSyncRun handles POST /api/v1/sync/run: the privileged manual
// trigger. It bypasses the interval check but still respects the lock,
// and surfaces the full run summary to the caller.
func (rr *Routes) postSyncRun(w http.ResponseWriter, r *http.Request) {
	run, err := rr.manager.ForceRun(r.Context())
	if err != nil {
		if errors.Is(err, pkgsync.ErrAlreadyRunning) {
			rr.writeErrorResponse(w, "Sync already running", http.StatusConflict)
			return
		}
		logger.Errorf("Manual sync run failed to start: %v", err)
		rr.writeErrorResponse(w, "Failed to start sync run", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, http.StatusOK, runToResponse(run))
}

// listSyncRuns handles GET /api/v1/sync/runs
func (rr *Routes) listSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRunsLimit {
			rr.writeErrorResponse(w, "limit must be an integer between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := rr.runs.ListRecent(r.Context(), limit)
	if err != nil {
		logger.Errorf("Failed to list sync runs: %v", err)
		rr.writeErrorResponse(w, "Failed to list sync runs", http.StatusInternalServerError)
		return
	}

	responses := make([]SyncRunResponse, 0, len(runs))
	for i := range runs {
		responses = append(responses, runToResponse(&runs[i]))
	}
	rr.writeJSONResponse(w, http.StatusOK, responses)
}

// getApartmentCount handles GET /api/v1/apartments/count
func (rr *Routes) getApartmentCount(w http.ResponseWriter, r *http.Request) {
	count, err := rr.repo.Count(r.Context())
	if err != nil {
		logger.Errorf("Failed to count apartments: %v", err)
		rr.writeErrorResponse(w, "Failed to count apartments", http.StatusInternalServerError)
		return
	}
	rr.writeJSONResponse(w, http.StatusOK, CountResponse{Count: count})
}

func runToResponse(run *runlog.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:             run.ID,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		RecordsSeen:    run.RecordsSeen,
		RecordsCreated: run.RecordsCreated,
		RecordsUpdated: run.RecordsUpdated,
		ErrorCount:     run.ErrorCount,
		Succeeded:      run.Succeeded,
		LogLines:       run.LogLines,
	}
}

func (rr *Routes) writeJSONResponse(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (rr *Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	rr.writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
