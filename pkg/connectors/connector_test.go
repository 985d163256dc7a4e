package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/curatewise/platform/pkg/content"
)

func TestGetJSONTranslatesTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := getJSON(context.Background(), srv.Client(), srv.URL, nil, nil)

	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rateLimited.RetryAfter != 7*time.Second {
		t.Fatalf("RetryAfter = %s, want 7s", rateLimited.RetryAfter)
	}
}

func TestGetJSONTranslatesQuotaExhaustedForbidden(t *testing.T) {
	reset := time.Now().Add(90 * time.Second).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := getJSON(context.Background(), srv.Client(), srv.URL, nil, nil)

	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
	if rateLimited.RetryAfter <= 0 || rateLimited.RetryAfter > 91*time.Second {
		t.Fatalf("RetryAfter = %s, want close to 90s", rateLimited.RetryAfter)
	}
}

func TestGetJSONPlainForbiddenIsNotRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := getJSON(context.Background(), srv.Client(), srv.URL, nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		t.Fatal("plain 403 must not read as rate limiting")
	}
}

func TestHandleRateLimitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wait := time.Minute
	if err := (waiter{}).HandleRateLimit(ctx, &wait); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSinceOrLookback(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := sinceOrLookback(&at, 30); !got.Equal(at) {
		t.Fatalf("explicit since ignored, got %v", got)
	}

	got := sinceOrLookback(nil, 7)
	wantAround := time.Now().UTC().AddDate(0, 0, -7)
	if got.Before(wantAround.Add(-time.Minute)) || got.After(wantAround.Add(time.Minute)) {
		t.Fatalf("lookback window = %v, want about %v", got, wantAround)
	}
}

func TestCapItems(t *testing.T) {
	items := fakeDatedItems(5)
	if got := capItems(items, 3); len(got) != 3 {
		t.Fatalf("capped to %d, want 3", len(got))
	}
	if got := capItems(items, 0); len(got) != 5 {
		t.Fatalf("zero cap trimmed to %d", len(got))
	}
	if got := capItems(items, 10); len(got) != 5 {
		t.Fatalf("loose cap trimmed to %d", len(got))
	}
}

func TestSortNewestFirst(t *testing.T) {
	dated := fakeDatedItems(4)
	items := []content.Item{
		{Title: "undated a"},
		dated[2],
		dated[0],
		{Title: "undated b"},
		dated[3],
		dated[1],
	}

	sortNewestFirst(items)

	for i := 0; i < len(items)-1; i++ {
		if items[i].PublishedAt == nil && items[i+1].PublishedAt != nil {
			t.Fatal("undated item sorted before dated ones")
		}
		if items[i].PublishedAt != nil && items[i+1].PublishedAt != nil &&
			items[i].PublishedAt.Before(*items[i+1].PublishedAt) {
			t.Fatalf("items out of order at %d", i)
		}
	}
	if items[len(items)-2].Title != "undated a" || items[len(items)-1].Title != "undated b" {
		t.Fatalf("undated items not kept stable at the tail: %q, %q",
			items[len(items)-2].Title, items[len(items)-1].Title)
	}
}

func fakeDatedItems(n int) []content.Item {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]content.Item, 0, n)
	for i := 0; i < n; i++ {
		at := base.AddDate(0, 0, i)
		items = append(items, content.Item{
			Title:       "item " + strconv.Itoa(i),
			URL:         "https://example.com/" + strconv.Itoa(i),
			PublishedAt: &at,
		})
	}
	return items
}
