package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/curatewise/platform/pkg/content"
)

// ParseError marks a payload the caller sent malformed; it maps to a 400
// rather than a retryable server error.
type ParseError struct {
	reason string
}

func (e *ParseError) Error() string {
	return "unparsable webhook payload: " + e.reason
}

// Parser maps one provider's payload shape onto content items.
type Parser func(body []byte) ([]content.Item, error)

// ParserFor resolves the parser named in a source's webhook_parser config.
// An empty name selects the generic parser.
func ParserFor(name string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic":
		return parseGeneric, nil
	case "github":
		return parseGitHubPush, nil
	case "feed_item":
		return parseFeedItem, nil
	default:
		return nil, fmt.Errorf("unknown webhook parser %q", name)
	}
}

type genericPayload struct {
	Items []struct {
		ContentType string                 `json:"content_type"`
		Title       string                 `json:"title"`
		Body        string                 `json:"body"`
		URL         string                 `json:"url"`
		PublishedAt *time.Time             `json:"published_at"`
		Metadata    map[string]interface{} `json:"metadata"`
	} `json:"items"`
}

// parseGeneric accepts our own documented push shape: a list of ready-made
// items.
func parseGeneric(body []byte) ([]content.Item, error) {
	var payload genericPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{reason: err.Error()}
	}
	if len(payload.Items) == 0 {
		return nil, &ParseError{reason: "no items in payload"}
	}

	items := make([]content.Item, 0, len(payload.Items))
	for _, in := range payload.Items {
		if in.Title == "" && in.Body == "" {
			return nil, &ParseError{reason: "item without title or body"}
		}
		contentType := in.ContentType
		if contentType == "" {
			contentType = "article"
		}
		items = append(items, content.Item{
			ContentType: contentType,
			Title:       in.Title,
			Body:        in.Body,
			URL:         in.URL,
			PublishedAt: in.PublishedAt,
			Metadata:    in.Metadata,
		})
	}
	return items, nil
}

type githubPushPayload struct {
	Ref        string `json:"ref"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Commits []struct {
		ID        string    `json:"id"`
		Message   string    `json:"message"`
		URL       string    `json:"url"`
		Timestamp time.Time `json:"timestamp"`
		Author    struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commits"`
}

// parseGitHubPush maps a push event's commit list onto commit items.
func parseGitHubPush(body []byte) ([]content.Item, error) {
	var payload githubPushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{reason: err.Error()}
	}
	if len(payload.Commits) == 0 {
		return nil, &ParseError{reason: "push event without commits"}
	}

	items := make([]content.Item, 0, len(payload.Commits))
	for _, commit := range payload.Commits {
		title := commit.Message
		if idx := strings.IndexByte(title, '\n'); idx > 0 {
			title = title[:idx]
		}
		published := commit.Timestamp
		items = append(items, content.Item{
			ContentType: "commit",
			Title:       title,
			Body:        commit.Message,
			URL:         commit.URL,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"repository": payload.Repository.FullName,
				"sha":        commit.ID,
				"author":     commit.Author.Name,
				"ref":        payload.Ref,
			},
		})
	}
	return items, nil
}

type feedItemPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	PubDate     *time.Time `json:"pub_date"`
	GUID        string     `json:"guid"`
}

// parseFeedItem accepts a single feed-entry-shaped object, the form feed
// bridge services push.
func parseFeedItem(body []byte) ([]content.Item, error) {
	var payload feedItemPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ParseError{reason: err.Error()}
	}
	if payload.Title == "" || payload.Link == "" {
		return nil, &ParseError{reason: "feed item requires title and link"}
	}

	metadata := map[string]interface{}{}
	if payload.GUID != "" {
		metadata["guid"] = payload.GUID
	}

	return []content.Item{{
		ContentType: "article",
		Title:       payload.Title,
		Body:        payload.Description,
		URL:         payload.Link,
		PublishedAt: payload.PubDate,
		Metadata:    metadata,
	}}, nil
}
