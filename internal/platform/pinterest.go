package platform

import (
	"context"
	"net/http"
	"strings"

	"social-publisher/internal/models"
)

const pinterestAPIURL = "https://api.pinterest.com/v5"

// PinterestAdapter creates pins on the board named by the connection's
// target id. Pins are image-first, so a post without images is rejected.
type PinterestAdapter struct {
	client  *http.Client
	baseURL string
}

func NewPinterestAdapter(client *http.Client) *PinterestAdapter {
	return &PinterestAdapter{client: client, baseURL: pinterestAPIURL}
}

func (a *PinterestAdapter) Platform() models.Platform { return models.PlatformPinterest }

func (a *PinterestAdapter) Publish(ctx context.Context, content Content, conn models.PlatformConnection) (PublishResult, error) {
	if len(content.ImageURLs) == 0 {
		return PublishResult{}, &PublishError{Code: codeNoImage, Message: "pinterest requires an image", Retryable: false}
	}
	if conn.TargetID == "" {
		return PublishResult{}, &PublishError{Code: codePermission, Message: "connection has no board configured", Retryable: false}
	}

	description := content.Text
	if len(content.Hashtags) > 0 {
		description = description + " " + strings.Join(content.Hashtags, " ")
	}

	var result struct {
		ID string `json:"id"`
	}
	err := postJSON(ctx, a.client, a.baseURL+"/pins", map[string]string{
		"Authorization": "Bearer " + conn.AccessToken,
	}, map[string]any{
		"board_id":    conn.TargetID,
		"description": description,
		"media_source": map[string]any{
			"source_type": "image_url",
			"url":         content.ImageURLs[0],
		},
	}, &result)
	if err != nil {
		return PublishResult{}, err
	}
	if result.ID == "" {
		return PublishResult{}, &PublishError{Code: codeBadResponse, Message: "pin response missing id", Retryable: false}
	}
	return PublishResult{ExternalID: result.ID}, nil
}
