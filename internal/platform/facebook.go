package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"social-publisher/internal/models"
)

const facebookGraphURL = "https://graph.facebook.com/v19.0"

// FacebookAdapter publishes to a Facebook page feed via the Graph API. Posts
// with images go through the photos edge so the first image renders inline.
type FacebookAdapter struct {
	client  *http.Client
	baseURL string
}

func NewFacebookAdapter(client *http.Client) *FacebookAdapter {
	return &FacebookAdapter{client: client, baseURL: facebookGraphURL}
}

func (a *FacebookAdapter) Platform() models.Platform { return models.PlatformFacebook }

func (a *FacebookAdapter) Publish(ctx context.Context, content Content, conn models.PlatformConnection) (PublishResult, error) {
	pageID := conn.TargetID
	if pageID == "" {
		pageID = conn.PlatformUserID
	}
	message := content.Text
	if len(content.Hashtags) > 0 {
		message = message + "\n\n" + strings.Join(content.Hashtags, " ")
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if len(content.ImageURLs) > 0 {
		payload := map[string]any{
			"url":          content.ImageURLs[0],
			"caption":      message,
			"access_token": conn.AccessToken,
		}
		if err := postJSON(ctx, a.client, fmt.Sprintf("%s/%s/photos", a.baseURL, pageID), nil, payload, &result); err != nil {
			return PublishResult{}, err
		}
	} else {
		payload := map[string]any{
			"message":      message,
			"access_token": conn.AccessToken,
		}
		if err := postJSON(ctx, a.client, fmt.Sprintf("%s/%s/feed", a.baseURL, pageID), nil, payload, &result); err != nil {
			return PublishResult{}, err
		}
	}

	id := result.PostID
	if id == "" {
		id = result.ID
	}
	if id == "" {
		return PublishResult{}, &PublishError{Code: codeBadResponse, Message: "graph response missing post id", Retryable: false}
	}
	return PublishResult{ExternalID: id}, nil
}
