// Package crawler drives crawl attempts: a single-source state machine and a
// batch driver that fans it out across every active source of every tenant,
// isolating failures per source.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/connectors"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/observability/metrics"
	"github.com/curatewise/platform/pkg/sources"
)

var ErrCrawlInProgress = errors.New("crawl already in progress for source")

type Options struct {
	DefaultFrequencyHours int
	InterSourceDelay      time.Duration
	SourceLockTTL         time.Duration
	RateLimitRetryCeiling time.Duration
}

type Stores struct {
	Sources   SourceStore
	Content   ContentStore
	Logs      LogStore
	Schedules ScheduleStore
}

type Orchestrator struct {
	registry *connectors.Registry
	deps     connectors.Deps
	stores   Stores
	locker   Locker
	events   EventPublisher
	opts     Options
}

func NewOrchestrator(registry *connectors.Registry, deps connectors.Deps, stores Stores, locker Locker, events EventPublisher, opts Options) *Orchestrator {
	if opts.DefaultFrequencyHours <= 0 {
		opts.DefaultFrequencyHours = 24
	}
	if opts.SourceLockTTL <= 0 {
		opts.SourceLockTTL = 10 * time.Minute
	}
	return &Orchestrator{
		registry: registry,
		deps:     deps,
		stores:   stores,
		locker:   locker,
		events:   events,
		opts:     opts,
	}
}

func (o *Orchestrator) Registry() *connectors.Registry {
	return o.registry
}

// Result summarizes one crawl attempt.
type Result struct {
	AttemptID    string `json:"attempt_id"`
	SourceID     string `json:"source_id"`
	Status       string `json:"status"`
	ItemsFetched int    `json:"items_fetched"`
	ItemsNew     int    `json:"items_new"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (o *Orchestrator) CrawlSourceByID(ctx context.Context, sourceID, attemptID string) (*Result, error) {
	src, err := o.stores.Sources.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	return o.CrawlSource(ctx, src, attemptID)
}

// CrawlSource runs one crawl attempt: started, then exactly one of success,
// partial or failed. An empty attemptID gets one generated by the log store.
// A failed attempt is reported in the Result, not as a returned error; the
// error return is reserved for conditions where no attempt ran at all, plus
// the distinct unsupported-source-type case.
func (o *Orchestrator) CrawlSource(ctx context.Context, src *sources.Source, attemptID string) (*Result, error) {
	acquired, err := o.locker.Acquire(ctx, src.ID, o.opts.SourceLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring source lock: %w", err)
	}
	if !acquired {
		return nil, ErrCrawlInProgress
	}

	// Bookkeeping writes must land even when the crawl's own context is
	// canceled mid-flight, otherwise a shutdown leaves logs stuck in started.
	bookkeeping := context.WithoutCancel(ctx)
	defer o.locker.Release(bookkeeping, src.ID)

	log := &CrawlLog{ID: attemptID, SourceID: src.ID, TenantID: src.TenantID}
	if err := o.stores.Logs.Start(ctx, log); err != nil {
		return nil, fmt.Errorf("starting crawl log: %w", err)
	}

	result := &Result{AttemptID: log.ID, SourceID: src.ID, Status: LogFailed}

	conn, err := o.registry.Connector(src, o.deps)
	if err != nil {
		o.failAttempt(bookkeeping, src, log.ID, result, 0, 0, err)
		if errors.Is(err, connectors.ErrUnsupportedSourceType) {
			return result, err
		}
		return result, nil
	}

	if err := conn.ValidateConnection(ctx); err != nil {
		// An unvalidated source must not advance its delta window: once the
		// credentials are fixed, the next attempt picks up from the last
		// window that actually fetched.
		o.failAttempt(bookkeeping, src, log.ID, result, 0, 0, fmt.Errorf("validation failed: %w", err))
		return result, nil
	}

	if mutator, ok := conn.(connectors.ConfigMutator); ok && mutator.ConfigMutated() {
		if err := o.stores.Sources.UpdateConfig(ctx, src.ID, src.Config); err != nil {
			logger.Log.WithError(err).WithField("source_id", src.ID).Warn("failed to persist resolved config")
		}
	}

	if src.Status != sources.StatusActive {
		if err := o.stores.Sources.SetStatus(ctx, src.ID, sources.StatusActive, ""); err != nil {
			logger.Log.WithError(err).WithField("source_id", src.ID).Warn("failed to promote source to active")
		}
	}

	items, err := o.fetchWithBackoff(ctx, conn, src.LastCrawledAt)
	crawledAt := time.Now().UTC()
	if err != nil {
		// The window still advances: inserted items are kept and the dedup
		// key makes a manual re-crawl of the gap safe, while re-scanning the
		// same window against a flaky API every cycle is not.
		if markErr := o.stores.Sources.MarkCrawled(bookkeeping, src.ID, crawledAt); markErr != nil {
			logger.Log.WithError(markErr).WithField("source_id", src.ID).Warn("failed to mark source crawled")
		}
		o.failAttempt(bookkeeping, src, log.ID, result, 0, 0, fmt.Errorf("fetch failed: %w", err))
		return result, nil
	}

	fetched := len(items)
	inserted := 0
	for i := range items {
		item := items[i]
		item.SourceID = src.ID

		if exists, existsErr := o.stores.Content.Exists(ctx, src.ID, item.URL); existsErr == nil && exists {
			continue
		}

		insertErr := o.stores.Content.Insert(ctx, &item)
		switch {
		case insertErr == nil:
			inserted++
			o.publishItem(bookkeeping, src, &item)
		case errors.Is(insertErr, content.ErrDuplicate):
			// Lost the insert race to a concurrent writer; same as existing.
		default:
			logger.Log.WithError(insertErr).WithFields(map[string]interface{}{
				"source_id": src.ID,
				"url":       item.URL,
			}).Warn("failed to store content item")
		}
	}

	if err := o.stores.Sources.MarkCrawled(bookkeeping, src.ID, crawledAt); err != nil {
		logger.Log.WithError(err).WithField("source_id", src.ID).Warn("failed to mark source crawled")
	}

	// Partial is the explicit "ran cleanly but nothing new" outcome, distinct
	// from failed so dashboards can tell a stale source from a broken one.
	status := LogPartial
	if inserted > 0 {
		status = LogSuccess
	}
	if err := o.stores.Logs.Complete(bookkeeping, log.ID, status, fetched, inserted, ""); err != nil {
		logger.Log.WithError(err).WithField("attempt_id", log.ID).Warn("failed to complete crawl log")
	}

	result.Status = status
	result.ItemsFetched = fetched
	result.ItemsNew = inserted
	metrics.ObserveCrawl(status, fetched, inserted)

	logger.Log.WithFields(map[string]interface{}{
		"source_id":     src.ID,
		"source_type":   src.SourceType,
		"status":        status,
		"items_fetched": fetched,
		"items_new":     inserted,
	}).Info("crawl attempt completed")

	return result, nil
}

// fetchWithBackoff retries a rate-limited fetch once when the provider's
// suggested wait fits under the ceiling; longer waits defer to the next
// scheduled run instead of stalling the batch.
func (o *Orchestrator) fetchWithBackoff(ctx context.Context, conn connectors.Connector, since *time.Time) ([]content.Item, error) {
	items, err := conn.FetchContent(ctx, since)

	var rateLimited *connectors.RateLimitError
	if !errors.As(err, &rateLimited) {
		return items, err
	}

	if o.opts.RateLimitRetryCeiling > 0 && rateLimited.RetryAfter > o.opts.RateLimitRetryCeiling {
		return nil, fmt.Errorf("deferred to next run: %w", err)
	}

	logger.Log.WithFields(map[string]interface{}{
		"source_type": conn.SourceType(),
		"retry_after": rateLimited.RetryAfter.String(),
	}).Info("rate limited, backing off")

	var hint *time.Duration
	if rateLimited.RetryAfter > 0 {
		hint = &rateLimited.RetryAfter
	}
	if waitErr := conn.HandleRateLimit(ctx, hint); waitErr != nil {
		return nil, waitErr
	}

	return conn.FetchContent(ctx, since)
}

func (o *Orchestrator) failAttempt(ctx context.Context, src *sources.Source, attemptID string, result *Result, fetched, inserted int, cause error) {
	msg := cause.Error()

	if err := o.stores.Sources.SetStatus(ctx, src.ID, sources.StatusError, msg); err != nil {
		logger.Log.WithError(err).WithField("source_id", src.ID).Warn("failed to set source error status")
	}
	if err := o.stores.Logs.Complete(ctx, attemptID, LogFailed, fetched, inserted, msg); err != nil {
		logger.Log.WithError(err).WithField("attempt_id", attemptID).Warn("failed to complete crawl log")
	}

	result.Status = LogFailed
	result.ItemsFetched = fetched
	result.ItemsNew = inserted
	result.ErrorMessage = msg
	metrics.ObserveCrawl(LogFailed, fetched, inserted)

	logger.Log.WithFields(map[string]interface{}{
		"source_id":   src.ID,
		"source_type": src.SourceType,
		"error":       msg,
	}).Warn("crawl attempt failed")
}

func (o *Orchestrator) publishItem(ctx context.Context, src *sources.Source, item *content.Item) {
	if o.events == nil {
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
	if err := o.events.PublishEvent(ctx, "content.ingested", src.SourceType, payload); err != nil {
		logger.Log.WithError(err).WithField("item_id", item.ID).Warn("failed to publish content event")
	}
}
