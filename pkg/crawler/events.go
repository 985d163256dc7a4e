package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/connectors"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/google/uuid"
)

// HandleCrawlRequest consumes crawl.requested events from the job-runner
// topic. A source id runs a single-source attempt, a tenant id runs a batch.
// Permanent failures and contention are treated as handled so the message is
// not redelivered forever.
func (o *Orchestrator) HandleCrawlRequest(ctx context.Context, event models.Event) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encoding crawl request: %w", err)
	}
	var req models.CrawlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("decoding crawl request: %w", err)
	}

	switch {
	case req.SourceID != "":
		_, err := o.CrawlSourceByID(ctx, req.SourceID, uuid.New().String())
		if isPermanentRequestError(err) {
			logger.Log.WithError(err).WithField("source_id", req.SourceID).Warn("dropping unprocessable crawl request")
			return nil
		}
		if errors.Is(err, ErrCrawlInProgress) {
			logger.Log.WithField("source_id", req.SourceID).Info("requested source already crawling")
			return nil
		}
		return err
	case req.TenantID != "":
		_, err := o.CrawlTenant(ctx, req.TenantID)
		if errors.Is(err, ErrBatchInProgress) {
			logger.Log.WithField("tenant_id", req.TenantID).Info("requested tenant already batch crawling")
			return nil
		}
		return err
	default:
		logger.Log.WithField("event_id", event.ID).Warn("crawl request without source or tenant id")
		return nil
	}
}

func isPermanentRequestError(err error) bool {
	return errors.Is(err, sources.ErrNotFound) || errors.Is(err, connectors.ErrUnsupportedSourceType)
}
