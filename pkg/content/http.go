package content

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	repo *Repository
}

func NewHTTPHandler(repo *Repository) *HTTPHandler {
	return &HTTPHandler{repo: repo}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/content", h.handleQuery).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	sourceIDs := r.URL.Query()["source_id"]
	if len(sourceIDs) == 0 {
		http.Error(w, "at least one source_id is required", http.StatusBadRequest)
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -7)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since timestamp, expected RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	items, err := h.repo.Query(r.Context(), sourceIDs, since)
	if err != nil {
		logger.Log.WithError(err).Error("failed to query content")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}
