package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
)

const TypeSubstack = "substack"

// substackConnector reads a newsletter's public archive API, which carries
// richer metadata than the feed endpoint (audience, paywall flag, subtitle).
type substackConnector struct {
	waiter
	src     *sources.Source
	client  *http.Client
	limits  Limits
	baseURL string
}

func substackRegistration() Registration {
	return Registration{
		SourceType: TypeSubstack,
		Config: []models.FieldSpec{
			{Name: "publication_url", Label: "Publication URL", Required: true},
		},
		New: newSubstackConnector,
	}
}

func newSubstackConnector(src *sources.Source, deps Deps) (Connector, error) {
	base := strings.TrimSuffix(src.ConfigString("publication_url"), "/")
	if base == "" {
		return nil, fmt.Errorf("substack source %s: missing publication_url", src.ID)
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	return &substackConnector{
		src:     src,
		client:  deps.Client,
		limits:  deps.Limits.For(TypeSubstack, src.MaxItems),
		baseURL: base,
	}, nil
}

func (c *substackConnector) SourceType() string { return TypeSubstack }

func (c *substackConnector) RequiredCredentialFields() []models.FieldSpec {
	return substackRegistration().Credentials
}

func (c *substackConnector) RequiredConfigFields() []models.FieldSpec {
	return substackRegistration().Config
}

func (c *substackConnector) ValidateConnection(ctx context.Context) error {
	endpoint := c.baseURL + "/api/v1/archive?sort=new&limit=1"
	if err := getJSON(ctx, c.client, endpoint, nil, nil); err != nil {
		return fmt.Errorf("substack archive lookup: %w", err)
	}
	return nil
}

type substackPost struct {
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle"`
	Description  string    `json:"description"`
	CanonicalURL string    `json:"canonical_url"`
	PostDate     time.Time `json:"post_date"`
	Audience     string    `json:"audience"`
	Slug         string    `json:"slug"`
}

func (c *substackConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	window := sinceOrLookback(since, c.limits.LookbackDays)

	endpoint := c.baseURL + "/api/v1/archive?sort=new&limit=" + strconv.Itoa(c.limits.MaxItems)

	var posts []substackPost
	if err := getJSON(ctx, c.client, endpoint, nil, &posts); err != nil {
		return nil, fmt.Errorf("substack archive: %w", err)
	}

	items := make([]content.Item, 0, len(posts))
	for _, post := range posts {
		if post.PostDate.Before(window) {
			continue
		}
		published := post.PostDate
		body := post.Description
		if body == "" {
			body = post.Subtitle
		}
		items = append(items, content.Item{
			ContentType: "newsletter",
			Title:       post.Title,
			Body:        body,
			URL:         post.CanonicalURL,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"slug":     post.Slug,
				"subtitle": post.Subtitle,
				"audience": post.Audience,
			},
		})
	}

	return capItems(items, c.limits.MaxItems), nil
}
