package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	orchestrator *Orchestrator
	logs         *LogRepository
	schedules    *ScheduleRepository
}

func NewHTTPHandler(orchestrator *Orchestrator, logs *LogRepository, schedules *ScheduleRepository) *HTTPHandler {
	return &HTTPHandler{orchestrator: orchestrator, logs: logs, schedules: schedules}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/source-types", h.handleSourceTypes).Methods(http.MethodGet)
	router.HandleFunc("/crawl/sources/{id}", h.handleTriggerSource).Methods(http.MethodPost)
	router.HandleFunc("/crawl/tenants/{tenantID}", h.handleTriggerBatch).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{tenantID}/crawl-logs", h.handleListLogs).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{tenantID}/crawl-stats", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/tenants/{tenantID}/schedule", h.handleSchedule).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleSourceTypes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.orchestrator.Registry().Types())
}

// handleTriggerSource starts a crawl attempt for one source. The default is
// fire-and-forget with an attempt id returned immediately; ?sync=1 runs the
// attempt inline and returns the full result, the manual/debug path.
func (h *HTTPHandler) handleTriggerSource(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["id"]

	src, err := h.orchestrator.stores.Sources.Get(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sync := r.URL.Query().Get("sync") != ""
	attemptID := uuid.New().String()

	// An unregistered type must surface as a distinct synchronous rejection,
	// so the attempt runs inline regardless of the sync flag.
	if sync || !h.orchestrator.Registry().Supports(src.SourceType) {
		result, err := h.orchestrator.CrawlSource(r.Context(), src, attemptID)
		switch {
		case errors.Is(err, ErrCrawlInProgress):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil && result != nil:
			// unsupported source type
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(result)
			return
		case err != nil:
			logger.Log.WithError(err).Error("failed to crawl source")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := h.orchestrator.CrawlSource(ctx, src, attemptID); err != nil && !errors.Is(err, ErrCrawlInProgress) {
			logger.Log.WithError(err).WithField("source_id", src.ID).Error("background crawl failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(models.TriggerResponse{
		AttemptID: attemptID,
		Status:    LogStarted,
		Timestamp: time.Now().UTC(),
	})
}

func (h *HTTPHandler) handleTriggerBatch(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	if r.URL.Query().Get("sync") != "" {
		summary, err := h.orchestrator.CrawlTenant(r.Context(), tenantID)
		if err != nil {
			if errors.Is(err, ErrBatchInProgress) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			logger.Log.WithError(err).Error("batch crawl failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
		return
	}

	// Reject the overlap here rather than letting the goroutine fail silently.
	if schedule, err := h.schedules.Get(r.Context(), tenantID); err == nil && schedule != nil && schedule.IsCrawling {
		http.Error(w, ErrBatchInProgress.Error(), http.StatusConflict)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()
		if _, err := h.orchestrator.CrawlTenant(ctx, tenantID); err != nil && !errors.Is(err, ErrBatchInProgress) {
			logger.Log.WithError(err).WithField("tenant_id", tenantID).Error("background batch failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(models.TriggerResponse{
		AttemptID: uuid.New().String(),
		Status:    LogStarted,
		Timestamp: time.Now().UTC(),
	})
}

func (h *HTTPHandler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]
	sourceID := r.URL.Query().Get("source_id")

	logs, err := h.logs.ListByTenant(r.Context(), tenantID, sourceID, 0)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list crawl logs")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(logs)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	stats, err := h.logs.Stats(r.Context(), tenantID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to aggregate crawl stats")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *HTTPHandler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	schedule, err := h.schedules.Get(r.Context(), tenantID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to fetch schedule")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if schedule == nil {
		http.Error(w, "no batch has run for tenant yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(schedule)
}
