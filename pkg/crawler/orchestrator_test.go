package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/curatewise/platform/pkg/connectors"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
)

type harness struct {
	orchestrator *Orchestrator
	sources      *fakeSourceStore
	content      *fakeContentStore
	logs         *fakeLogStore
	schedules    *fakeScheduleStore
	events       *fakeEvents
	conns        map[string]*fakeConnector
}

func newHarness(t *testing.T, opts Options, srcs ...*sources.Source) *harness {
	t.Helper()

	h := &harness{
		sources:   newFakeSourceStore(srcs...),
		content:   newFakeContentStore(),
		logs:      newFakeLogStore(),
		schedules: newFakeScheduleStore(),
		events:    &fakeEvents{},
		conns:     map[string]*fakeConnector{},
	}
	h.orchestrator = NewOrchestrator(
		fakeRegistry(t, h.conns),
		connectors.Deps{},
		Stores{Sources: h.sources, Content: h.content, Logs: h.logs, Schedules: h.schedules},
		NewMemoryLocker(),
		h.events,
		opts,
	)
	return h
}

func (h *harness) addSource(src *sources.Source) {
	h.sources.mu.Lock()
	defer h.sources.mu.Unlock()
	h.sources.sources[src.ID] = src
}

func fakeSource(id, tenantID string) *sources.Source {
	return &sources.Source{
		ID:         id,
		TenantID:   tenantID,
		SourceType: "fake",
		Name:       "Fake " + id,
		Status:     sources.StatusActive,
	}
}

func fakeItems(urls ...string) []content.Item {
	now := time.Now().UTC()
	items := make([]content.Item, 0, len(urls))
	for _, url := range urls {
		published := now
		items = append(items, content.Item{
			ContentType: "article",
			Title:       "Item " + url,
			URL:         url,
			PublishedAt: &published,
		})
	}
	return items
}

func TestCrawlSourceSuccess(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	src.Status = sources.StatusPending
	h := newHarness(t, Options{})
	h.addSource(src)
	h.conns[src.ID] = &fakeConnector{sourceType: "fake", items: fakeItems("https://a/1", "https://a/2")}

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	if result.Status != LogSuccess {
		t.Fatalf("status = %q, want %q", result.Status, LogSuccess)
	}
	if result.ItemsFetched != 2 || result.ItemsNew != 2 {
		t.Fatalf("fetched/new = %d/%d, want 2/2", result.ItemsFetched, result.ItemsNew)
	}

	log, ok := h.logs.final("attempt-1")
	if !ok {
		t.Fatal("crawl log was never completed")
	}
	if log.Status != LogSuccess || log.ItemsNew != 2 {
		t.Fatalf("log = %+v, want success with 2 new", log)
	}

	stored := h.sources.get(src.ID)
	if stored.Status != sources.StatusActive {
		t.Fatalf("source status = %q, want active after validated crawl", stored.Status)
	}
	if stored.LastCrawledAt == nil {
		t.Fatal("LastCrawledAt not advanced")
	}
	if n := h.events.byType("content.ingested"); n != 2 {
		t.Fatalf("published %d content events, want 2", n)
	}
}

func TestCrawlSourceRecrawlIsIdempotent(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	h := newHarness(t, Options{})
	h.addSource(src)
	h.conns[src.ID] = &fakeConnector{sourceType: "fake", items: fakeItems("https://a/1", "https://a/2")}

	if _, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1"); err != nil {
		t.Fatalf("first crawl: %v", err)
	}

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-2")
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}
	if result.Status != LogPartial {
		t.Fatalf("re-crawl status = %q, want %q", result.Status, LogPartial)
	}
	if result.ItemsNew != 0 {
		t.Fatalf("re-crawl stored %d items, want 0", result.ItemsNew)
	}
	if h.content.count() != 2 {
		t.Fatalf("store holds %d items after re-crawl, want 2", h.content.count())
	}
}

func TestCrawlSourceUnsupportedType(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	src.SourceType = "telepathy"
	h := newHarness(t, Options{})
	h.addSource(src)

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if !errors.Is(err, connectors.ErrUnsupportedSourceType) {
		t.Fatalf("err = %v, want ErrUnsupportedSourceType", err)
	}
	if result == nil || result.Status != LogFailed {
		t.Fatalf("result = %+v, want failed", result)
	}

	log, ok := h.logs.final("attempt-1")
	if !ok || log.Status != LogFailed {
		t.Fatalf("log = %+v, want completed failed", log)
	}
	if got := h.sources.get(src.ID).Status; got != sources.StatusError {
		t.Fatalf("source status = %q, want error", got)
	}
}

func TestCrawlSourceValidationFailureKeepsDeltaWindow(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	earlier := time.Now().UTC().Add(-48 * time.Hour)
	src.LastCrawledAt = &earlier
	h := newHarness(t, Options{})
	h.addSource(src)
	h.conns[src.ID] = &fakeConnector{sourceType: "fake", validateErr: errors.New("bad credentials")}

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	if result.Status != LogFailed {
		t.Fatalf("status = %q, want failed", result.Status)
	}

	stored := h.sources.get(src.ID)
	if stored.Status != sources.StatusError {
		t.Fatalf("source status = %q, want error", stored.Status)
	}
	if !stored.LastCrawledAt.Equal(earlier) {
		t.Fatalf("LastCrawledAt moved to %v on validation failure", stored.LastCrawledAt)
	}
}

func TestCrawlSourceFetchFailureAdvancesWindow(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	earlier := time.Now().UTC().Add(-48 * time.Hour)
	src.LastCrawledAt = &earlier
	h := newHarness(t, Options{})
	h.addSource(src)
	h.conns[src.ID] = &fakeConnector{sourceType: "fake", fetchErrs: []error{errors.New("upstream 500")}}

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	if result.Status != LogFailed {
		t.Fatalf("status = %q, want failed", result.Status)
	}
	if stored := h.sources.get(src.ID); stored.LastCrawledAt.Equal(earlier) {
		t.Fatal("LastCrawledAt not advanced after fetch-time failure")
	}
}

func TestCrawlSourcePassesDeltaWindow(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	since := time.Now().UTC().Add(-6 * time.Hour)
	src.LastCrawledAt = &since
	h := newHarness(t, Options{})
	h.addSource(src)
	conn := &fakeConnector{sourceType: "fake"}
	h.conns[src.ID] = conn

	if _, err := h.orchestrator.CrawlSource(context.Background(), src, ""); err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	if conn.lastSince == nil || !conn.lastSince.Equal(since) {
		t.Fatalf("connector received since = %v, want %v", conn.lastSince, since)
	}
}

func TestCrawlSourceRateLimitRetryWithinCeiling(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	h := newHarness(t, Options{RateLimitRetryCeiling: time.Second})
	h.addSource(src)
	conn := &fakeConnector{
		sourceType: "fake",
		fetchErrs:  []error{&connectors.RateLimitError{RetryAfter: 5 * time.Millisecond}},
		items:      fakeItems("https://a/1"),
	}
	h.conns[src.ID] = conn

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	if result.Status != LogSuccess {
		t.Fatalf("status = %q, want success after retry", result.Status)
	}
	if conn.fetchCount() != 2 {
		t.Fatalf("fetch attempts = %d, want 2", conn.fetchCount())
	}
}

func TestCrawlSourceRateLimitBeyondCeilingDefers(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	h := newHarness(t, Options{RateLimitRetryCeiling: time.Second})
	h.addSource(src)
	conn := &fakeConnector{
		sourceType: "fake",
		fetchErrs:  []error{&connectors.RateLimitError{RetryAfter: time.Hour}},
	}
	h.conns[src.ID] = conn

	result, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	if result.Status != LogFailed {
		t.Fatalf("status = %q, want failed (deferred)", result.Status)
	}
	if conn.fetchCount() != 1 {
		t.Fatalf("fetch attempts = %d, want 1 when deferring", conn.fetchCount())
	}
}

func TestCrawlSourceLockContention(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	locker := NewMemoryLocker()
	h := newHarness(t, Options{})
	h.addSource(src)
	h.orchestrator.locker = locker

	if ok, _ := locker.Acquire(context.Background(), src.ID, time.Minute); !ok {
		t.Fatal("pre-acquire failed")
	}

	_, err := h.orchestrator.CrawlSource(context.Background(), src, "attempt-1")
	if !errors.Is(err, ErrCrawlInProgress) {
		t.Fatalf("err = %v, want ErrCrawlInProgress", err)
	}
	if len(h.logs.started) != 0 {
		t.Fatal("contended attempt must not write a crawl log")
	}
}

func TestCrawlSourcePersistsMutatedConfig(t *testing.T) {
	src := fakeSource("src-1", "tenant-1")
	src.Config = map[string]interface{}{"channel_handle": "@acme"}
	h := newHarness(t, Options{})
	h.addSource(src)
	h.conns[src.ID] = &fakeConnector{sourceType: "fake", mutated: true}

	if _, err := h.orchestrator.CrawlSource(context.Background(), src, ""); err != nil {
		t.Fatalf("CrawlSource: %v", err)
	}
	stored := h.sources.get(src.ID)
	if stored.Config == nil {
		t.Fatal("mutated config was not persisted")
	}
}
