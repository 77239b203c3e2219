// Package handlers provides HTTP handlers for monitoring and health endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/docpublish/internal/foundation/errors"
	"git.home.luguber.info/inful/docpublish/internal/history"
	"git.home.luguber.info/inful/docpublish/internal/server/responses"
	"git.home.luguber.info/inful/docpublish/internal/upload"
	"git.home.luguber.info/inful/docpublish/internal/version"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// StagingStats reports staging areas currently held by transactions.
type StagingStats interface {
	Active() int
}

// HistorySource lists recorded publish transactions, newest first.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// MonitoringHandlers contains monitoring-related HTTP handlers.
type MonitoringHandlers struct {
	started      time.Time
	staging      StagingStats
	gate         *upload.Gate
	history      HistorySource
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new monitoring handlers instance. hist may be nil
// when the publish ledger is disabled.
func NewMonitoringHandlers(staging StagingStats, gate *upload.Gate, hist HistorySource) *MonitoringHandlers {
	return &MonitoringHandlers{
		started:      time.Now(),
		staging:      staging,
		gate:         gate,
		history:      hist,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck handles the health check endpoint.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.errorAdapter, w, r, http.MethodGet) {
		return
	}

	policy := h.gate.Policy()
	health := &responses.HealthResponse{
		Status:            "healthy",
		Timestamp:         time.Now().UTC(),
		Version:           version.Version,
		Uptime:            time.Since(h.started).Seconds(),
		AllowedExtensions: policy.Extensions(),
		MaxUploadBytes:    policy.MaxBytes(),
	}
	if h.staging != nil {
		health.ActiveStaging = h.staging.Active()
	}

	if err := writeJSONPretty(w, r, http.StatusOK, health); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to write health response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// HandleHistory lists recent publish transactions from the ledger.
func (h *MonitoringHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(h.errorAdapter, w, r, http.MethodGet) {
		return
	}
	if h.history == nil {
		err := errors.NewError(errors.CategoryNotFound, "publish history is disabled").
			WithCode("history_disabled").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			verr := errors.ValidationError("limit must be an integer between 1 and 500").
				WithContext("limit", raw).
				Build()
			h.errorAdapter.WriteErrorResponse(w, r, verr)
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			errors.WrapError(err, errors.CategoryStorage, "failed to read publish history").Build())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	resp := &responses.HistoryResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Count:     len(entries),
		Entries:   entries,
	}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to write history response").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}
