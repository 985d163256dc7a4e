package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
)

const TypeGitHub = "github"

const githubAPIBase = "https://api.github.com"

type githubConnector struct {
	waiter
	src    *sources.Source
	client *http.Client
	limits Limits
	repo   string
	token  string
}

func githubRegistration() Registration {
	return Registration{
		SourceType: TypeGitHub,
		Credentials: []models.FieldSpec{
			{Name: "access_token", Label: "Personal access token", Required: false, Secret: true},
		},
		Config: []models.FieldSpec{
			{Name: "repository", Label: "Repository (owner/name)", Required: true},
		},
		New: newGitHubConnector,
	}
}

func newGitHubConnector(src *sources.Source, deps Deps) (Connector, error) {
	repo := src.ConfigString("repository")
	if repo == "" || !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github source %s: repository must be owner/name", src.ID)
	}

	return &githubConnector{
		src:    src,
		client: deps.Client,
		limits: deps.Limits.For(TypeGitHub, src.MaxItems),
		repo:   repo,
		token:  src.CredentialString("access_token"),
	}, nil
}

func (c *githubConnector) SourceType() string { return TypeGitHub }

func (c *githubConnector) RequiredCredentialFields() []models.FieldSpec {
	return githubRegistration().Credentials
}

func (c *githubConnector) RequiredConfigFields() []models.FieldSpec {
	return githubRegistration().Config
}

func (c *githubConnector) authHeader() http.Header {
	header := http.Header{"Accept": []string{"application/vnd.github+json"}}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	return header
}

func (c *githubConnector) ValidateConnection(ctx context.Context) error {
	endpoint := githubAPIBase + "/repos/" + c.repo
	if err := getJSON(ctx, c.client, endpoint, c.authHeader(), nil); err != nil {
		return fmt.Errorf("github repository lookup: %w", err)
	}
	return nil
}

type githubRelease struct {
	Name        string    `json:"name"`
	TagName     string    `json:"tag_name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Draft       bool      `json:"draft"`
}

type githubCommit struct {
	SHA     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// FetchContent merges recent releases and commits, newest first. Releases are
// the interesting signal; commits fill in for repositories that never cut one.
func (c *githubConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	window := sinceOrLookback(since, c.limits.LookbackDays)
	items := make([]content.Item, 0, c.limits.MaxItems)

	perPage := strconv.Itoa(c.limits.MaxItems)

	var releases []githubRelease
	endpoint := githubAPIBase + "/repos/" + c.repo + "/releases?per_page=" + perPage
	if err := getJSON(ctx, c.client, endpoint, c.authHeader(), &releases); err != nil {
		return nil, fmt.Errorf("github releases: %w", err)
	}
	for _, rel := range releases {
		if rel.Draft || rel.PublishedAt.Before(window) {
			continue
		}
		published := rel.PublishedAt
		title := rel.Name
		if title == "" {
			title = rel.TagName
		}
		items = append(items, content.Item{
			ContentType: "release",
			Title:       title,
			Body:        rel.Body,
			URL:         rel.HTMLURL,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"repository": c.repo,
				"tag":        rel.TagName,
			},
		})
	}

	query := url.Values{}
	query.Set("per_page", perPage)
	query.Set("since", window.UTC().Format(time.RFC3339))

	var commits []githubCommit
	endpoint = githubAPIBase + "/repos/" + c.repo + "/commits?" + query.Encode()
	if err := getJSON(ctx, c.client, endpoint, c.authHeader(), &commits); err != nil {
		return nil, fmt.Errorf("github commits: %w", err)
	}
	for _, commit := range commits {
		published := commit.Commit.Author.Date
		title := commit.Commit.Message
		if idx := strings.IndexByte(title, '\n'); idx > 0 {
			title = title[:idx]
		}
		items = append(items, content.Item{
			ContentType: "commit",
			Title:       title,
			Body:        commit.Commit.Message,
			URL:         commit.HTMLURL,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"repository": c.repo,
				"sha":        commit.SHA,
				"author":     commit.Commit.Author.Name,
			},
		})
	}

	sortNewestFirst(items)
	return capItems(items, c.limits.MaxItems), nil
}
