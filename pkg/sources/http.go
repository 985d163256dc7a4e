package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/common/models"
	"github.com/gorilla/mux"
	"gorm.io/datatypes"
)

// Store is the subset of Repository the HTTP handler needs.
type Store interface {
	Create(ctx context.Context, src *Source) error
	Get(ctx context.Context, id string) (*Source, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Source, error)
	Reactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TypeChecker reports whether a source type has a registered connector.
type TypeChecker interface {
	Supports(sourceType string) bool
}

// ContentDeleter removes a deleted source's items so content cascades with it.
type ContentDeleter interface {
	DeleteBySource(ctx context.Context, sourceID string) error
}

type HTTPHandler struct {
	repo    Store
	content ContentDeleter
	types   TypeChecker
}

func NewHTTPHandler(repo Store, content ContentDeleter, types TypeChecker) *HTTPHandler {
	return &HTTPHandler{repo: repo, content: content, types: types}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/tenants/{tenantID}/sources", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/tenants/{tenantID}/sources", h.handleList).Methods(http.MethodGet)
	router.HandleFunc("/sources/{id}/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/sources/{id}/reactivate", h.handleReactivate).Methods(http.MethodPost)
	router.HandleFunc("/sources/{id}", h.handleDelete).Methods(http.MethodDelete)
}

type createSourceRequest struct {
	SourceType  string                 `json:"source_type"`
	Name        string                 `json:"name"`
	URL         string                 `json:"url"`
	Config      map[string]interface{} `json:"config"`
	Credentials map[string]interface{} `json:"credentials"`
	MaxItems    int                    `json:"max_items"`
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	var req createSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.SourceType == "" {
		http.Error(w, "name and source_type are required", http.StatusBadRequest)
		return
	}
	if !h.types.Supports(req.SourceType) {
		http.Error(w, "unsupported source type: "+req.SourceType, http.StatusBadRequest)
		return
	}

	src := &Source{
		TenantID:    tenantID,
		SourceType:  req.SourceType,
		Name:        req.Name,
		URL:         req.URL,
		Config:      datatypes.JSONMap(req.Config),
		Credentials: datatypes.JSONMap(req.Credentials),
		MaxItems:    req.MaxItems,
	}
	if err := h.repo.Create(r.Context(), src); err != nil {
		logger.Log.WithError(err).Error("failed to create source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(src)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenantID"]

	list, err := h.repo.ListByTenant(r.Context(), tenantID)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list sources")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	src, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	health := models.SourceHealth{
		SourceID:      src.ID,
		Status:        src.Status,
		LastCrawledAt: src.LastCrawledAt,
		ErrorMessage:  src.ErrorMessage,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (h *HTTPHandler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.repo.Reactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to reactivate source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.repo.Get(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.content.DeleteBySource(r.Context(), id); err != nil {
		logger.Log.WithError(err).Error("failed to cascade content deletion")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		logger.Log.WithError(err).Error("failed to delete source")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
