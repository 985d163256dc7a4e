package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/observability/metrics"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/gorilla/mux"
)

type SourceStore interface {
	Get(ctx context.Context, id string) (*sources.Source, error)
}

type ContentStore interface {
	Insert(ctx context.Context, item *content.Item) error
}

type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}

type HTTPHandler struct {
	sources         SourceStore
	content         ContentStore
	events          EventPublisher
	signatureHeader string
	maxBody         int64
}

func NewHTTPHandler(sourceStore SourceStore, contentStore ContentStore, events EventPublisher, signatureHeader string, maxBody int64) *HTTPHandler {
	if signatureHeader == "" {
		signatureHeader = "X-Hub-Signature-256"
	}
	return &HTTPHandler{
		sources:         sourceStore,
		content:         contentStore,
		events:          events,
		signatureHeader: signatureHeader,
		maxBody:         maxBody,
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/webhooks/sources/{id}", h.handlePush).Methods(http.MethodPost)
}

type pushResponse struct {
	ItemsReceived int       `json:"items_received"`
	ItemsNew      int       `json:"items_new"`
	Timestamp     time.Time `json:"timestamp"`
}

// handlePush verifies, parses and stores one provider payload. Verification
// and parsing both complete before anything is written, so a rejected payload
// is never partially applied.
func (h *HTTPHandler) handlePush(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["id"]

	src, err := h.sources.Get(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			http.Error(w, "source not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch source for webhook")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	secret := src.CredentialString("webhook_secret")
	if err := VerifySignature(secret, body, r.Header.Get(h.signatureHeader)); err != nil {
		metrics.ObserveWebhook(false)
		logger.Log.WithField("source_id", sourceID).Warn("webhook signature rejected")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	parser, err := ParserFor(src.ConfigString("webhook_parser"))
	if err != nil {
		metrics.ObserveWebhook(false)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := parser(body)
	if err != nil {
		metrics.ObserveWebhook(false)
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			http.Error(w, parseErr.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("webhook parse failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	inserted := 0
	for i := range items {
		item := items[i]
		item.SourceID = src.ID

		insertErr := h.content.Insert(r.Context(), &item)
		switch {
		case insertErr == nil:
			inserted++
			h.publishItem(r.Context(), src, &item)
		case errors.Is(insertErr, content.ErrDuplicate):
			// Providers redeliver; the dedup key absorbs it.
		default:
			logger.Log.WithError(insertErr).WithField("source_id", src.ID).Error("failed to store pushed item")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	metrics.ObserveWebhook(true)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(pushResponse{
		ItemsReceived: len(items),
		ItemsNew:      inserted,
		Timestamp:     time.Now().UTC(),
	})
}

func (h *HTTPHandler) publishItem(ctx context.Context, src *sources.Source, item *content.Item) {
	if h.events == nil {
		return
	}
	payload := map[string]interface{}{
		"item_id":      item.ID,
		"source_id":    src.ID,
		"tenant_id":    src.TenantID,
		"content_type": item.ContentType,
		"title":        item.Title,
		"url":          item.URL,
	}
	if err := h.events.PublishEvent(ctx, "content.ingested", "webhook", payload); err != nil {
		logger.Log.WithError(err).WithField("item_id", item.ID).Warn("failed to publish content event")
	}
}
