package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/curatewise/platform/pkg/sources"
)

func rssFixture(now time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Engineering</title>
    <item>
      <title>Fresh post</title>
      <link>https://example.com/fresh</link>
      <guid>fresh-1</guid>
      <description>New material</description>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title>Stale post</title>
      <link>https://example.com/stale</link>
      <guid>stale-1</guid>
      <description>Ancient material</description>
      <pubDate>%s</pubDate>
    </item>
  </channel>
</rss>`,
		now.Add(-2*time.Hour).Format(time.RFC1123Z),
		now.AddDate(0, 0, -90).Format(time.RFC1123Z))
}

func newRSSFixtureConnector(t *testing.T, handler http.HandlerFunc) (Connector, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src := &sources.Source{
		ID:         "src-rss",
		SourceType: TypeRSS,
		Config:     map[string]interface{}{"feed_url": srv.URL + "/feed.xml"},
	}
	conn, err := newRSSConnector(src, Deps{Client: srv.Client(), Limits: DefaultLimits()})
	if err != nil {
		t.Fatalf("newRSSConnector: %v", err)
	}
	return conn, srv
}

func TestRSSFetchAppliesLookbackWindow(t *testing.T) {
	now := time.Now().UTC()
	conn, _ := newRSSFixtureConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFixture(now))
	})

	items, err := conn.FetchContent(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want the 1 inside the window", len(items))
	}
	if items[0].URL != "https://example.com/fresh" {
		t.Fatalf("kept %q, want the fresh entry", items[0].URL)
	}
	if items[0].ContentType != "article" {
		t.Fatalf("content type = %q, want article", items[0].ContentType)
	}
	if items[0].Metadata["guid"] != "fresh-1" {
		t.Fatalf("metadata guid = %v", items[0].Metadata["guid"])
	}
}

func TestRSSFetchHonorsExplicitSince(t *testing.T) {
	now := time.Now().UTC()
	conn, _ := newRSSFixtureConnector(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFixture(now))
	})

	since := now.Add(-time.Hour)
	items, err := conn.FetchContent(context.Background(), &since)
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("got %d items newer than %v, want 0", len(items), since)
	}
}

func TestRSSTranslatesThrottling(t *testing.T) {
	conn, _ := newRSSFixtureConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := conn.FetchContent(context.Background(), nil)
	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("err = %v, want RateLimitError", err)
	}
}

func TestRSSMissingFeedURL(t *testing.T) {
	src := &sources.Source{ID: "src-rss", SourceType: TypeRSS}
	if _, err := newRSSConnector(src, Deps{Limits: DefaultLimits()}); err == nil {
		t.Fatal("constructor accepted a source without feed_url")
	}
}
