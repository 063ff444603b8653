package platform

import (
	"context"
	"net/http"
	"strings"

	"social-publisher/internal/models"
)

const xAPIURL = "https://api.x.com/2"

// XAdapter posts tweets through the X v2 API. Image URLs are appended to the
// text; native media upload needs a separate chunked-upload flow that the
// connection tokens here do not cover.
type XAdapter struct {
	client  *http.Client
	baseURL string
}

func NewXAdapter(client *http.Client) *XAdapter {
	return &XAdapter{client: client, baseURL: xAPIURL}
}

func (a *XAdapter) Platform() models.Platform { return models.PlatformX }

func (a *XAdapter) Publish(ctx context.Context, content Content, conn models.PlatformConnection) (PublishResult, error) {
	parts := []string{content.Text}
	if len(content.Hashtags) > 0 {
		parts = append(parts, strings.Join(content.Hashtags, " "))
	}
	if len(content.ImageURLs) > 0 {
		parts = append(parts, content.ImageURLs[0])
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := postJSON(ctx, a.client, a.baseURL+"/tweets", map[string]string{
		"Authorization": "Bearer " + conn.AccessToken,
	}, map[string]any{
		"text": strings.Join(parts, "\n"),
	}, &result)
	if err != nil {
		return PublishResult{}, err
	}
	if result.Data.ID == "" {
		return PublishResult{}, &PublishError{Code: codeBadResponse, Message: "tweet response missing id", Retryable: false}
	}
	return PublishResult{ExternalID: result.Data.ID}, nil
}
