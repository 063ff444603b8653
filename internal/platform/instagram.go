package platform

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"social-publisher/internal/models"
)

// InstagramAdapter publishes through the Instagram Graph API's two-step
// container flow: create a media container for the image, then publish it.
// Instagram has no text-only posts, so a post without images is rejected
// terminally.
type InstagramAdapter struct {
	client  *http.Client
	baseURL string
}

func NewInstagramAdapter(client *http.Client) *InstagramAdapter {
	return &InstagramAdapter{client: client, baseURL: facebookGraphURL}
}

func (a *InstagramAdapter) Platform() models.Platform { return models.PlatformInstagram }

func (a *InstagramAdapter) Publish(ctx context.Context, content Content, conn models.PlatformConnection) (PublishResult, error) {
	if len(content.ImageURLs) == 0 {
		return PublishResult{}, &PublishError{Code: codeNoImage, Message: "instagram requires at least one image", Retryable: false}
	}

	caption := content.Text
	if len(content.Hashtags) > 0 {
		caption = caption + "\n\n" + strings.Join(content.Hashtags, " ")
	}

	var container struct {
		ID string `json:"id"`
	}
	err := postJSON(ctx, a.client, fmt.Sprintf("%s/%s/media", a.baseURL, conn.PlatformUserID), nil, map[string]any{
		"image_url":    content.ImageURLs[0],
		"caption":      caption,
		"access_token": conn.AccessToken,
	}, &container)
	if err != nil {
		return PublishResult{}, err
	}
	if container.ID == "" {
		return PublishResult{}, &PublishError{Code: codeBadResponse, Message: "media container response missing id", Retryable: false}
	}

	var published struct {
		ID string `json:"id"`
	}
	err = postJSON(ctx, a.client, fmt.Sprintf("%s/%s/media_publish", a.baseURL, conn.PlatformUserID), nil, map[string]any{
		"creation_id":  container.ID,
		"access_token": conn.AccessToken,
	}, &published)
	if err != nil {
		return PublishResult{}, err
	}
	if published.ID == "" {
		return PublishResult{}, &PublishError{Code: codeBadResponse, Message: "media publish response missing id", Retryable: false}
	}
	return PublishResult{ExternalID: published.ID}, nil
}
