package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/connectors"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/google/uuid"
)

type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[string]*sources.Source
	tenants []string
}

func newFakeSourceStore(srcs ...*sources.Source) *fakeSourceStore {
	store := &fakeSourceStore{sources: map[string]*sources.Source{}}
	for _, src := range srcs {
		store.sources[src.ID] = src
	}
	return store
}

func (s *fakeSourceStore) Get(ctx context.Context, id string) (*sources.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, sources.ErrNotFound
	}
	copied := *src
	return &copied, nil
}

func (s *fakeSourceStore) ListActiveByTenant(ctx context.Context, tenantID string) ([]sources.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sources.Source
	for _, src := range s.sources {
		if src.TenantID == tenantID && src.Status == sources.StatusActive {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (s *fakeSourceStore) ListTenantsWithActive(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tenants...), nil
}

func (s *fakeSourceStore) SetStatus(ctx context.Context, id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		src.Status = status
		src.ErrorMessage = errMsg
	}
	return nil
}

func (s *fakeSourceStore) MarkCrawled(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		src.LastCrawledAt = &at
	}
	return nil
}

func (s *fakeSourceStore) UpdateConfig(ctx context.Context, id string, cfg map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[id]; ok {
		src.Config = cfg
	}
	return nil
}

func (s *fakeSourceStore) get(id string) *sources.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[id]
}

type fakeContentStore struct {
	mu    sync.Mutex
	items map[string]content.Item
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{items: map[string]content.Item{}}
}

func (s *fakeContentStore) key(sourceID, url string) string {
	return sourceID + "|" + url
}

func (s *fakeContentStore) Exists(ctx context.Context, sourceID, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[s.key(sourceID, url)]
	return ok, nil
}

func (s *fakeContentStore) Insert(ctx context.Context, item *content.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(item.SourceID, item.URL)
	if item.URL != "" {
		if _, dup := s.items[key]; dup {
			return content.ErrDuplicate
		}
	} else {
		key = s.key(item.SourceID, uuid.New().String())
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	s.items[key] = *item
	return nil
}

func (s *fakeContentStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fakeLogStore struct {
	mu        sync.Mutex
	started   []CrawlLog
	completed map[string]CrawlLog
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{completed: map[string]CrawlLog{}}
}

func (s *fakeLogStore) Start(ctx context.Context, log *CrawlLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.Status = LogStarted
	log.StartedAt = time.Now().UTC()
	s.started = append(s.started, *log)
	return nil
}

func (s *fakeLogStore) Complete(ctx context.Context, id, status string, fetched, inserted int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[id] = CrawlLog{
		ID:           id,
		Status:       status,
		ItemsFetched: fetched,
		ItemsNew:     inserted,
		ErrorMessage: errMsg,
	}
	return nil
}

func (s *fakeLogStore) final(id string) (CrawlLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.completed[id]
	return log, ok
}

type fakeScheduleStore struct {
	mu        sync.Mutex
	schedules map[string]*BatchCrawlSchedule
	crawling  map[string]bool
	completed int
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{
		schedules: map[string]*BatchCrawlSchedule{},
		crawling:  map[string]bool{},
	}
}

func (s *fakeScheduleStore) Get(ctx context.Context, tenantID string) (*BatchCrawlSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[tenantID]
	if !ok {
		return nil, nil
	}
	copied := *schedule
	return &copied, nil
}

func (s *fakeScheduleStore) AcquireBatch(ctx context.Context, tenantID string, defaultFrequencyHours int) (*BatchCrawlSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crawling[tenantID] {
		return nil, ErrBatchInProgress
	}
	s.crawling[tenantID] = true
	schedule, ok := s.schedules[tenantID]
	if !ok {
		schedule = &BatchCrawlSchedule{TenantID: tenantID, FrequencyHours: defaultFrequencyHours}
		s.schedules[tenantID] = schedule
	}
	schedule.IsCrawling = true
	copied := *schedule
	return &copied, nil
}

func (s *fakeScheduleStore) CompleteBatch(ctx context.Context, tenantID string, crawled, failed int, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crawling[tenantID] = false
	s.completed++
	if schedule, ok := s.schedules[tenantID]; ok {
		now := time.Now().UTC()
		next := now.Add(time.Duration(schedule.FrequencyHours) * time.Hour)
		schedule.IsCrawling = false
		schedule.LastBatchCrawlAt = &now
		schedule.NextScheduledCrawlAt = &next
		schedule.SourcesCrawledCount = crawled
		schedule.SourcesFailedCount = failed
	}
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *fakeEvents) PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
	return nil
}

func (e *fakeEvents) byType(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev == eventType {
			n++
		}
	}
	return n
}

// fakeConnector lets a test script validation and fetch outcomes per source.
type fakeConnector struct {
	sourceType  string
	validateErr error
	fetchErrs   []error
	items       []content.Item
	mutated     bool

	mu        sync.Mutex
	fetches   int
	lastSince *time.Time
}

func (c *fakeConnector) SourceType() string { return c.sourceType }

func (c *fakeConnector) RequiredCredentialFields() []models.FieldSpec { return nil }

func (c *fakeConnector) RequiredConfigFields() []models.FieldSpec { return nil }

func (c *fakeConnector) ValidateConnection(ctx context.Context) error { return c.validateErr }

func (c *fakeConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSince = since
	attempt := c.fetches
	c.fetches++
	if attempt < len(c.fetchErrs) && c.fetchErrs[attempt] != nil {
		return nil, c.fetchErrs[attempt]
	}
	return append([]content.Item(nil), c.items...), nil
}

func (c *fakeConnector) HandleRateLimit(ctx context.Context, retryAfter *time.Duration) error {
	select {
	case <-time.After(time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConnector) ConfigMutated() bool { return c.mutated }

func (c *fakeConnector) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// fakeRegistry builds a registry whose only type hands back per-source
// scripted connectors.
func fakeRegistry(t interface{ Fatalf(string, ...interface{}) }, conns map[string]*fakeConnector) *connectors.Registry {
	registry, err := connectors.NewRegistryWith(connectors.Registration{
		SourceType: "fake",
		New: func(src *sources.Source, deps connectors.Deps) (connectors.Connector, error) {
			conn, ok := conns[src.ID]
			if !ok {
				conn = &fakeConnector{sourceType: "fake"}
				conns[src.ID] = conn
			}
			return conn, nil
		},
	})
	if err != nil {
		t.Fatalf("building fake registry: %v", err)
	}
	return registry
}
