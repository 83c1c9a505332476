package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/footballdb/internal/loader"
	"github.com/fortuna/footballdb/internal/service"
	"github.com/fortuna/footballdb/internal/store/repository"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// LoadAPI is what the handlers need from the load service
type LoadAPI interface {
	ListTables(ctx context.Context) ([]repository.TableSummary, error)
	QueryMatches(ctx context.Context, table string, filter repository.MatchFilter) ([]repository.Row, error)
	XGCoverage(ctx context.Context, table string) (*repository.Coverage, error)
	HealthCheck() error
	Status() service.LoadStatus
	History() []*loader.Report
	StartRebuild() error
}

// Pinger is an optional backing service reported by /health
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	loads LoadAPI
	redis Pinger
}

// NewHandler creates a new handler
func NewHandler(loads LoadAPI) *Handler {
	return &Handler{loads: loads}
}

// SetRedis adds Redis to the health report. Without it Redis shows as disabled.
func (h *Handler) SetRedis(p Pinger) {
	h.redis = p
}

// HealthCheck handles health check requests. The service is healthy even
// before the first load; store reports whether queries can be served.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	if err := h.loads.HealthCheck(); err != nil {
		storeStatus = err.Error()
	}

	redisStatus := "disabled"
	if h.redis != nil {
		redisStatus = "ok"
		if err := h.redis.HealthCheck(r.Context()); err != nil {
			redisStatus = err.Error()
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "footballdb",
		"store":   storeStatus,
		"redis":   redisStatus,
		"loading": h.loads.Status().Running,
	})
}

// ListTables returns every loaded table with its row count
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.loads.ListTables(r.Context())
	if err != nil {
		respondStoreError(w, "Failed to list tables", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tables": tables,
		"count":  len(tables),
	})
}

// GetMatches returns the rows of one table, optionally filtered by team and date
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	filter, err := parseMatchFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	rows, err := h.loads.QueryMatches(r.Context(), table, filter)
	if err != nil {
		respondStoreError(w, "Failed to fetch matches", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"table":   table,
		"matches": rows,
		"count":   len(rows),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// GetXGCoverage returns how many rows of a table received xG
func (h *Handler) GetXGCoverage(w http.ResponseWriter, r *http.Request) {
	cov, err := h.loads.XGCoverage(r.Context(), mux.Vars(r)["table"])
	if err != nil {
		respondStoreError(w, "Failed to compute xG coverage", err)
		return
	}

	respondJSON(w, http.StatusOK, cov)
}

// GetLoads returns the current load state and recent reports
func (h *Handler) GetLoads(w http.ResponseWriter, r *http.Request) {
	status := h.loads.Status()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"running":    status.Running,
		"started_at": status.StartedAt,
		"last_error": status.LastError,
		"history":    h.loads.History(),
	})
}

// GetLastLoad returns the report of the most recent load
func (h *Handler) GetLastLoad(w http.ResponseWriter, r *http.Request) {
	status := h.loads.Status()
	if status.Last == nil {
		respondError(w, http.StatusNotFound, "No load has run yet", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"report":     status.Last,
		"last_error": status.LastError,
	})
}

// TriggerLoad starts a rebuild in the background
func (h *Handler) TriggerLoad(w http.ResponseWriter, r *http.Request) {
	if err := h.loads.StartRebuild(); err != nil {
		if errors.Is(err, service.ErrLoadInProgress) {
			respondError(w, http.StatusConflict, "A load is already running", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to start load", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Load started",
	})
}

func parseMatchFilter(r *http.Request) (repository.MatchFilter, error) {
	q := r.URL.Query()
	filter := repository.MatchFilter{
		Team:  q.Get("team"),
		Limit: defaultLimit,
	}

	if dateStr := q.Get("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return filter, fmt.Errorf("invalid date format (YYYY-MM-DD): %q", dateStr)
		}
		filter.Date = date
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit %q", limitStr)
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		filter.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset %q", offsetStr)
		}
		filter.Offset = offset
	}

	return filter, nil
}

func respondStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, repository.ErrTableNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, service.ErrStoreNotReady):
		respondError(w, http.StatusServiceUnavailable, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}

	respondJSON(w, status, response)
}
