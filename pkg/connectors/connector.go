// Package connectors holds the pluggable adapters that fetch content from
// external platforms. Each connector adapts one provider's pagination and
// auth shape to the common capability set consumed by the crawl orchestrator.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/curatewise/platform/pkg/common/httpclient"
	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/content"
)

const requestUserAgent = "curatewise-crawler/1.0"

// Connector is the capability set every source-type plugin implements.
type Connector interface {
	SourceType() string
	RequiredCredentialFields() []models.FieldSpec
	RequiredConfigFields() []models.FieldSpec

	// ValidateConnection performs one cheap read-only call confirming both
	// identity and target-resource existence before any fetch is attempted.
	ValidateConnection(ctx context.Context) error

	// FetchContent returns at most the configured maximum of the most recent
	// items published at or after since. A nil since applies the connector's
	// default lookback window instead of fetching unbounded history.
	FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error)

	// HandleRateLimit waits out a provider throttle, honoring ctx cancellation.
	HandleRateLimit(ctx context.Context, retryAfter *time.Duration) error
}

// ConfigMutator is implemented by connectors that resolve a human-readable
// handle to a stable id during validation. The orchestrator persists the
// mutated config back onto the source so later crawls skip the resolution.
type ConfigMutator interface {
	ConfigMutated() bool
}

// RateLimitError carries the provider's suggested wait so the orchestrator
// can decide between retrying within the attempt and deferring to the next
// scheduled run.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// waiter provides the shared HandleRateLimit implementation.
type waiter struct{}

func (waiter) HandleRateLimit(ctx context.Context, retryAfter *time.Duration) error {
	wait := 5 * time.Second
	if retryAfter != nil && *retryAfter > 0 {
		wait = *retryAfter
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseRetryAfter reads a Retry-After response header in either seconds or
// HTTP-date form. Zero means the provider gave no hint.
func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := time.ParseDuration(raw + "s"); err == nil {
		return secs
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// rateLimitFromResponse builds a RateLimitError from whichever throttle hint
// the provider sends: Retry-After, or an X-RateLimit-Reset epoch (GitHub and
// Twitter style).
func rateLimitFromResponse(resp *http.Response) *RateLimitError {
	if d := parseRetryAfter(resp); d > 0 {
		return &RateLimitError{RetryAfter: d}
	}
	for _, key := range []string{"X-RateLimit-Reset", "x-rate-limit-reset"} {
		raw := resp.Header.Get(key)
		if raw == "" {
			continue
		}
		epoch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if d := time.Until(time.Unix(epoch, 0)); d > 0 {
			return &RateLimitError{RetryAfter: d}
		}
	}
	return &RateLimitError{}
}

// getJSON performs a GET and decodes the JSON body into out. Provider "too
// many requests" signals are translated into RateLimitError so the caller can
// back off instead of treating them as generic failures.
func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", requestUserAgent)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		if !httpclient.IsRetriable(err) {
			return err
		}
		// GET with no body, safe to replay on timeouts.
		if err := httpclient.Retry(ctx, 2, 200*time.Millisecond, func() error {
			var doErr error
			resp, doErr = client.Do(req)
			return doErr
		}); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return rateLimitFromResponse(resp)
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return rateLimitFromResponse(resp)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// sinceOrLookback resolves the delta window: the caller's since when present,
// otherwise now minus the connector's default lookback.
func sinceOrLookback(since *time.Time, lookbackDays int) time.Time {
	if since != nil {
		return *since
	}
	return time.Now().UTC().AddDate(0, 0, -lookbackDays)
}

// capItems trims a result set to the newest max entries. Items are assumed
// newest-first, the order every connector normalizes to.
func capItems(items []content.Item, max int) []content.Item {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

// sortNewestFirst orders items by published time descending, undated last.
func sortNewestFirst(items []content.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].PublishedAt == nil {
			return false
		}
		if items[j].PublishedAt == nil {
			return true
		}
		return items[i].PublishedAt.After(*items[j].PublishedAt)
	})
}
