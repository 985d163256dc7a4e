package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const TypeReddit = "reddit"

const (
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditAPIBase  = "https://oauth.reddit.com"
)

type redditConnector struct {
	waiter
	src       *sources.Source
	client    *http.Client
	limits    Limits
	subreddit string
}

func redditRegistration() Registration {
	return Registration{
		SourceType: TypeReddit,
		Credentials: []models.FieldSpec{
			{Name: "client_id", Label: "App client id", Required: true},
			{Name: "client_secret", Label: "App client secret", Required: true, Secret: true},
		},
		Config: []models.FieldSpec{
			{Name: "subreddit", Label: "Subreddit", Required: true},
		},
		New: newRedditConnector,
	}
}

func newRedditConnector(src *sources.Source, deps Deps) (Connector, error) {
	clientID := src.CredentialString("client_id")
	clientSecret := src.CredentialString("client_secret")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("reddit source %s: client_id and client_secret required", src.ID)
	}
	subreddit := src.ConfigString("subreddit")
	if subreddit == "" {
		return nil, fmt.Errorf("reddit source %s: missing subreddit", src.ID)
	}

	// App-only OAuth: the token client wraps the shared transport so every
	// API call carries a fresh bearer token.
	oauthCfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     redditTokenURL,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, deps.Client)

	return &redditConnector{
		src:       src,
		client:    oauthCfg.Client(ctx),
		limits:    deps.Limits.For(TypeReddit, src.MaxItems),
		subreddit: subreddit,
	}, nil
}

func (c *redditConnector) SourceType() string { return TypeReddit }

func (c *redditConnector) RequiredCredentialFields() []models.FieldSpec {
	return redditRegistration().Credentials
}

func (c *redditConnector) RequiredConfigFields() []models.FieldSpec {
	return redditRegistration().Config
}

// ValidateConnection exercises both the token flow and the subreddit lookup
// in one call.
func (c *redditConnector) ValidateConnection(ctx context.Context) error {
	endpoint := redditAPIBase + "/r/" + url.PathEscape(c.subreddit) + "/about"
	if err := getJSON(ctx, c.client, endpoint, nil, nil); err != nil {
		return fmt.Errorf("reddit subreddit lookup: %w", err)
	}
	return nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				URL        string  `json:"url"`
				Permalink  string  `json:"permalink"`
				Author     string  `json:"author"`
				CreatedUTC float64 `json:"created_utc"`
				Score      int     `json:"score"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *redditConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	window := sinceOrLookback(since, c.limits.LookbackDays)

	endpoint := redditAPIBase + "/r/" + url.PathEscape(c.subreddit) + "/new?limit=" + strconv.Itoa(c.limits.MaxItems)

	var listing redditListing
	if err := getJSON(ctx, c.client, endpoint, nil, &listing); err != nil {
		return nil, fmt.Errorf("reddit listing: %w", err)
	}

	items := make([]content.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		published := time.Unix(int64(post.CreatedUTC), 0).UTC()
		if published.Before(window) {
			continue
		}
		items = append(items, content.Item{
			ContentType: "discussion",
			Title:       post.Title,
			Body:        post.Selftext,
			URL:         "https://www.reddit.com" + post.Permalink,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"subreddit": c.subreddit,
				"post_id":   post.ID,
				"author":    post.Author,
				"score":     post.Score,
				"link_url":  post.URL,
			},
		})
	}

	return capItems(items, c.limits.MaxItems), nil
}
