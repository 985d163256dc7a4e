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
)

const TypeTwitter = "twitter"

const twitterAPIBase = "https://api.twitter.com/2"

type twitterConnector struct {
	waiter
	src     *sources.Source
	client  *http.Client
	limits  Limits
	bearer  string
	mutated bool
}

func twitterRegistration() Registration {
	return Registration{
		SourceType: TypeTwitter,
		Credentials: []models.FieldSpec{
			{Name: "bearer_token", Label: "API bearer token", Required: true, Secret: true},
		},
		Config: []models.FieldSpec{
			{Name: "username", Label: "Account username", Required: true},
		},
		New: newTwitterConnector,
	}
}

func newTwitterConnector(src *sources.Source, deps Deps) (Connector, error) {
	bearer := src.CredentialString("bearer_token")
	if bearer == "" {
		return nil, fmt.Errorf("twitter source %s: missing bearer_token", src.ID)
	}
	if src.ConfigString("username") == "" {
		return nil, fmt.Errorf("twitter source %s: missing username", src.ID)
	}

	return &twitterConnector{
		src:    src,
		client: deps.Client,
		limits: deps.Limits.For(TypeTwitter, src.MaxItems),
		bearer: bearer,
	}, nil
}

func (c *twitterConnector) SourceType() string { return TypeTwitter }

func (c *twitterConnector) RequiredCredentialFields() []models.FieldSpec {
	return twitterRegistration().Credentials
}

func (c *twitterConnector) RequiredConfigFields() []models.FieldSpec {
	return twitterRegistration().Config
}

func (c *twitterConnector) ConfigMutated() bool { return c.mutated }

func (c *twitterConnector) authHeader() http.Header {
	return http.Header{"Authorization": []string{"Bearer " + c.bearer}}
}

type twitterUserLookup struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
}

// ValidateConnection looks the username up and caches the numeric user id in
// the source config; the timeline endpoint is keyed by id, not handle.
func (c *twitterConnector) ValidateConnection(ctx context.Context) error {
	username := c.src.ConfigString("username")

	var user twitterUserLookup
	endpoint := twitterAPIBase + "/users/by/username/" + url.PathEscape(username)
	if err := getJSON(ctx, c.client, endpoint, c.authHeader(), &user); err != nil {
		return fmt.Errorf("twitter user lookup: %w", err)
	}
	if user.Data.ID == "" {
		return fmt.Errorf("twitter user %q not found", username)
	}

	if c.src.ConfigString("user_id") != user.Data.ID {
		if c.src.Config == nil {
			c.src.Config = map[string]interface{}{}
		}
		c.src.Config["user_id"] = user.Data.ID
		c.mutated = true
	}
	return nil
}

type twitterTimeline struct {
	Data []struct {
		ID        string    `json:"id"`
		Text      string    `json:"text"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"data"`
}

func (c *twitterConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	userID := c.src.ConfigString("user_id")
	if userID == "" {
		return nil, fmt.Errorf("twitter source %s: user id not resolved", c.src.ID)
	}

	window := sinceOrLookback(since, c.limits.LookbackDays)

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(c.limits.MaxItems))
	query.Set("start_time", window.UTC().Format(time.RFC3339))
	query.Set("tweet.fields", "created_at")

	var timeline twitterTimeline
	endpoint := twitterAPIBase + "/users/" + url.PathEscape(userID) + "/tweets?" + query.Encode()
	if err := getJSON(ctx, c.client, endpoint, c.authHeader(), &timeline); err != nil {
		return nil, fmt.Errorf("twitter timeline: %w", err)
	}

	username := c.src.ConfigString("username")
	items := make([]content.Item, 0, len(timeline.Data))
	for _, tweet := range timeline.Data {
		published := tweet.CreatedAt
		title := tweet.Text
		if len(title) > 80 {
			title = title[:77] + "..."
		}
		items = append(items, content.Item{
			ContentType: "post",
			Title:       title,
			Body:        tweet.Text,
			URL:         fmt.Sprintf("https://twitter.com/%s/status/%s", username, tweet.ID),
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"tweet_id": tweet.ID,
				"user_id":  userID,
			},
		})
	}

	return capItems(items, c.limits.MaxItems), nil
}
