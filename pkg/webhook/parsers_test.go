package webhook

import (
	"errors"
	"testing"
)

func TestParserForNames(t *testing.T) {
	for _, name := range []string{"", "generic", "GitHub", " feed_item "} {
		if _, err := ParserFor(name); err != nil {
			t.Fatalf("ParserFor(%q): %v", name, err)
		}
	}
	if _, err := ParserFor("smoke-signals"); err == nil {
		t.Fatal("unknown parser name accepted")
	}
}

func TestParseGeneric(t *testing.T) {
	body := []byte(`{"items":[
		{"title":"First","url":"https://push.example/1","published_at":"2026-08-01T10:00:00Z"},
		{"body":"untitled but has a body","url":"https://push.example/2"}
	]}`)

	items, err := parseGeneric(body)
	if err != nil {
		t.Fatalf("parseGeneric: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ContentType != "article" {
		t.Fatalf("default content type = %q, want article", items[0].ContentType)
	}
	if items[0].PublishedAt == nil {
		t.Fatal("published_at dropped")
	}
}

func TestParseGenericRejectsEmptyItems(t *testing.T) {
	var parseErr *ParseError

	if _, err := parseGeneric([]byte(`{"items":[]}`)); !errors.As(err, &parseErr) {
		t.Fatalf("empty payload: err = %v, want ParseError", err)
	}
	if _, err := parseGeneric([]byte(`{"items":[{"url":"https://x"}]}`)); !errors.As(err, &parseErr) {
		t.Fatalf("item without title or body: err = %v, want ParseError", err)
	}
	if _, err := parseGeneric([]byte(`{{`)); !errors.As(err, &parseErr) {
		t.Fatalf("malformed json: err = %v, want ParseError", err)
	}
}

func TestParseGitHubPush(t *testing.T) {
	body := []byte(`{
		"ref": "refs/heads/main",
		"repository": {"full_name": "acme/widgets"},
		"commits": [{
			"id": "abc123",
			"message": "Tighten retry loop\n\nDetails here.",
			"url": "https://github.com/acme/widgets/commit/abc123",
			"timestamp": "2026-08-20T09:30:00Z",
			"author": {"name": "Dev"}
		}]
	}`)

	items, err := parseGitHubPush(body)
	if err != nil {
		t.Fatalf("parseGitHubPush: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Title != "Tighten retry loop" {
		t.Fatalf("title = %q, want first message line", items[0].Title)
	}
	if items[0].Metadata["sha"] != "abc123" || items[0].Metadata["repository"] != "acme/widgets" {
		t.Fatalf("metadata = %v", items[0].Metadata)
	}
}

func TestParseFeedItem(t *testing.T) {
	body := []byte(`{
		"title": "Bridged entry",
		"description": "pushed from a feed bridge",
		"link": "https://blog.example/post",
		"guid": "post-1"
	}`)

	items, err := parseFeedItem(body)
	if err != nil {
		t.Fatalf("parseFeedItem: %v", err)
	}
	if len(items) != 1 || items[0].URL != "https://blog.example/post" {
		t.Fatalf("items = %+v", items)
	}

	var parseErr *ParseError
	if _, err := parseFeedItem([]byte(`{"title":"no link"}`)); !errors.As(err, &parseErr) {
		t.Fatalf("missing link: err = %v, want ParseError", err)
	}
}
