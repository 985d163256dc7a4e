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

const TypeYouTube = "youtube"

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

type youtubeConnector struct {
	waiter
	src     *sources.Source
	client  *http.Client
	limits  Limits
	apiKey  string
	mutated bool
}

func youtubeRegistration() Registration {
	return Registration{
		SourceType: TypeYouTube,
		Credentials: []models.FieldSpec{
			{Name: "api_key", Label: "YouTube Data API key", Required: true, Secret: true},
		},
		Config: []models.FieldSpec{
			{Name: "channel_handle", Label: "Channel handle (@name)", Required: false},
			{Name: "channel_id", Label: "Channel ID", Required: false},
		},
		New: newYouTubeConnector,
	}
}

func newYouTubeConnector(src *sources.Source, deps Deps) (Connector, error) {
	apiKey := src.CredentialString("api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("youtube source %s: missing api_key", src.ID)
	}
	if src.ConfigString("channel_id") == "" && src.ConfigString("channel_handle") == "" {
		return nil, fmt.Errorf("youtube source %s: channel_id or channel_handle required", src.ID)
	}

	return &youtubeConnector{
		src:    src,
		client: deps.Client,
		limits: deps.Limits.For(TypeYouTube, src.MaxItems),
		apiKey: apiKey,
	}, nil
}

func (c *youtubeConnector) SourceType() string { return TypeYouTube }

func (c *youtubeConnector) RequiredCredentialFields() []models.FieldSpec {
	return youtubeRegistration().Credentials
}

func (c *youtubeConnector) RequiredConfigFields() []models.FieldSpec {
	return youtubeRegistration().Config
}

func (c *youtubeConnector) ConfigMutated() bool { return c.mutated }

type youtubeChannelList struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

// ValidateConnection confirms the API key and channel both exist. A source
// configured by handle gets the stable channel id written back into its
// config so subsequent crawls skip the lookup.
func (c *youtubeConnector) ValidateConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("part", "id")
	query.Set("key", c.apiKey)

	if id := c.src.ConfigString("channel_id"); id != "" {
		query.Set("id", id)
	} else {
		query.Set("forHandle", c.src.ConfigString("channel_handle"))
	}

	var channels youtubeChannelList
	if err := getJSON(ctx, c.client, youtubeAPIBase+"/channels?"+query.Encode(), nil, &channels); err != nil {
		return fmt.Errorf("youtube channel lookup: %w", err)
	}
	if len(channels.Items) == 0 {
		return fmt.Errorf("youtube channel not found")
	}

	if c.src.ConfigString("channel_id") == "" {
		if c.src.Config == nil {
			c.src.Config = map[string]interface{}{}
		}
		c.src.Config["channel_id"] = channels.Items[0].ID
		c.mutated = true
	}
	return nil
}

type youtubeSearchList struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			PublishedAt  time.Time `json:"publishedAt"`
			Title        string    `json:"title"`
			Description  string    `json:"description"`
			ChannelTitle string    `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *youtubeConnector) FetchContent(ctx context.Context, since *time.Time) ([]content.Item, error) {
	channelID := c.src.ConfigString("channel_id")
	if channelID == "" {
		return nil, fmt.Errorf("youtube source %s: channel id not resolved", c.src.ID)
	}

	window := sinceOrLookback(since, c.limits.LookbackDays)

	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("key", c.apiKey)
	query.Set("channelId", channelID)
	query.Set("type", "video")
	query.Set("order", "date")
	query.Set("maxResults", strconv.Itoa(c.limits.MaxItems))
	query.Set("publishedAfter", window.UTC().Format(time.RFC3339))

	var results youtubeSearchList
	if err := getJSON(ctx, c.client, youtubeAPIBase+"/search?"+query.Encode(), nil, &results); err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	items := make([]content.Item, 0, len(results.Items))
	for _, video := range results.Items {
		if video.ID.VideoID == "" {
			continue
		}
		published := video.Snippet.PublishedAt
		items = append(items, content.Item{
			ContentType: "video",
			Title:       video.Snippet.Title,
			Body:        video.Snippet.Description,
			URL:         "https://www.youtube.com/watch?v=" + video.ID.VideoID,
			PublishedAt: &published,
			Metadata: map[string]interface{}{
				"video_id":      video.ID.VideoID,
				"channel_id":    channelID,
				"channel_title": video.Snippet.ChannelTitle,
			},
		})
	}

	return capItems(items, c.limits.MaxItems), nil
}
