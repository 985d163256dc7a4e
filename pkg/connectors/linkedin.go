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
)

const TypeLinkedIn = "linkedin"

const linkedinAPIBase = "https://api.linkedin.com/v2"

// linkedinConnector fetches an organization's page posts. LinkedIn requires a
// full OAuth token set; the refresh token keeps crawls working after the
// short-lived access token expires.
type linkedinConnector struct {
	waiter
	src    *sources.Source
	client *http.Client
	limits Limits
	orgID  string
}

func linkedinRegistration() Registration {
	return Registration{
		SourceType: TypeLinkedIn,
		Credentials: []models.FieldSpec{
			{Name: "client_id", Label: "App client id", Required: true},
			{Name: "client_secret", Label: "App client secret", Required: true, Secret: true},
			{Name: "access_token", Label: "Access token", Required: true, Secret: true},
			{Name: "refresh_token", Label: "Refresh token", Required: false, Secret: true},
		},
		Config: []models.FieldSpec{
			{Name: "organization_id", Label: "Organization id", Required: true},
		},
		New: newLinkedInConnector,
	}
}

func newLinkedInConnector(src *sources.Source, deps Deps) (Connector, error) {
	orgID := src.ConfigString("organization_id")
	if orgID == "" {
		return nil, fmt.Errorf("linkedin source %s: missing organization_id", src.ID)
	}
	accessToken := src.CredentialString("access_token")
	if accessToken == "" {
		return nil, fmt.Errorf("linkedin source %s: missing access_token", src.ID)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     src.CredentialString("client_id"),
		ClientSecret: src.CredentialString("client_secret"),
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
		},
	}
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: src.CredentialString("refresh_token"),
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, deps.Client)

	return &linkedinConnector{
		src:    src,
		client: oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, token)),
		limits: deps.Limits.For(TypeLinkedIn, src.MaxItems),
		orgID:  orgID,
	}, nil
}

func (c *linkedinConnector) SourceType() string { return TypeLinkedIn }

func (c *linkedinConnector) RequiredCredentialFields() []models.FieldSpec {
	return linkedinRegistration().Credentials
}

func (c *linkedinConnector) RequiredConfigFields() []models.FieldSpec {
	return linkedinRegistration().Config
}

func (c *linkedinConnector) ValidateConnection(ctx context.Context) error {
	endpoint := linkedinAPIBase + "/organizations/" + url.PathEscape(c.orgID)
	if err := getJSON(ctx, c.client, endpoint, nil, nil); err != nil {
		return fmt.Errorf("linkedin organization lookup: %w", err)
	}
	return nil
}

type linkedinPosts struct {
	Elements []struct {
		ID         string `json:"id"`
		Commentary string `json:"commentary"`
		CreatedAt  int64  `json:"createdAt"`
		Content    struct {
			Article struct {
				Title  string `json:"title"`
				Source string `json:"source"`
			} `json:"article"`
		} `json:"content"`
	} `json:"elements"`
}

func (c *linkedinConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	window := sinceOrLookback(since, c.limits.LookbackDays)

	query := url.Values{}
	query.Set("author", "urn:li:organization:"+c.orgID)
	query.Set("q", "author")
	query.Set("count", strconv.Itoa(c.limits.MaxItems))
	query.Set("sortBy", "CREATED")

	header := http.Header{
		"X-Restli-Protocol-Version": []string{"2.0.0"},
		"LinkedIn-Version":          []string{"202401"},
	}

	var posts linkedinPosts
	endpoint := linkedinAPIBase + "/posts?" + query.Encode()
	if err := getJSON(ctx, c.client, endpoint, header, &posts); err != nil {
		return nil, fmt.Errorf("linkedin posts: %w", err)
	}

	items := make([]content.Item, 0, len(posts.Elements))
	for _, post := range posts.Elements {
		published := time.UnixMilli(post.CreatedAt).UTC()
		if published.Before(window) {
			continue
		}
		title := post.Content.Article.Title
		if title == "" {
			title = post.Commentary
			if len(title) > 80 {
				title = title[:77] + "..."
			}
		}
		items = append(items, content.Item{
			ContentType: "post",
			Title:       title,
			Body:        post.Commentary,
			URL:         post.Content.Article.Source,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"post_id":         post.ID,
				"organization_id": c.orgID,
			},
		})
	}

	sortNewestFirst(items)
	return capItems(items, c.limits.MaxItems), nil
}
