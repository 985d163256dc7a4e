package connectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/mmcdole/gofeed"
)

const TypeRSS = "rss"

type rssConnector struct {
	waiter
	src     *sources.Source
	parser  *gofeed.Parser
	feedURL string
	limits  Limits
}

func rssRegistration() Registration {
	return Registration{
		SourceType: TypeRSS,
		Config: []models.FieldSpec{
			{Name: "feed_url", Label: "Feed URL", Required: true},
		},
		New: newRSSConnector,
	}
}

func newRSSConnector(src *sources.Source, deps Deps) (Connector, error) {
	feedURL := src.ConfigString("feed_url")
	if feedURL == "" {
		return nil, fmt.Errorf("rss source %s: missing feed_url", src.ID)
	}

	parser := gofeed.NewParser()
	parser.Client = deps.Client
	parser.UserAgent = requestUserAgent

	return &rssConnector{
		src:     src,
		parser:  parser,
		feedURL: feedURL,
		limits:  deps.Limits.For(TypeRSS, src.MaxItems),
	}, nil
}

func (c *rssConnector) SourceType() string { return TypeRSS }

func (c *rssConnector) RequiredCredentialFields() []models.FieldSpec {
	return rssRegistration().Credentials
}

func (c *rssConnector) RequiredConfigFields() []models.FieldSpec {
	return rssRegistration().Config
}

func (c *rssConnector) ValidateConnection(ctx context.Context) error {
	if _, err := c.parser.ParseURLWithContext(c.feedURL, ctx); err != nil {
		return translateFeedError(err)
	}
	return nil
}

func (c *rssConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	feed, err := c.parser.ParseURLWithContext(c.feedURL, ctx)
	if err != nil {
		return nil, translateFeedError(err)
	}

	window := sinceOrLookback(since, c.limits.LookbackDays)
	return capItems(feedToItems(feed, "article", window), c.limits.MaxItems), nil
}

// translateFeedError maps a gofeed HTTP error into the connector error
// vocabulary; 429 becomes a rate-limit signal.
func translateFeedError(err error) error {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return &RateLimitError{}
	}
	return err
}

// feedToItems normalizes feed entries published inside the window, newest
// first. Shared by the rss and medium connectors.
func feedToItems(feed *gofeed.Feed, contentType string, window time.Time) []content.Item {
	items := make([]content.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}
		if published != nil && published.Before(window) {
			continue
		}

		body := entry.Content
		if body == "" {
			body = entry.Description
		}

		metadata := map[string]interface{}{
			"feed_title": feed.Title,
		}
		if entry.GUID != "" {
			metadata["guid"] = entry.GUID
		}
		if len(entry.Authors) > 0 && entry.Authors[0] != nil {
			metadata["author"] = entry.Authors[0].Name
		}
		if len(entry.Categories) > 0 {
			metadata["categories"] = entry.Categories
		}

		items = append(items, content.Item{
			ContentType: contentType,
			Title:       entry.Title,
			Body:        body,
			URL:         entry.Link,
			PublishedAt: published,
			Metadata:    metadata,
		})
	}

	sortNewestFirst(items)
	return items
}
