package models

import (
	"time"
)

// Post is a user's content scheduled for one or more platforms.
// Content is immutable once publishing has started.
type Post struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Content       string     `json:"content"`
	Images        []string   `json:"images,omitempty"`
	Hashtags      []string   `json:"hashtags,omitempty"`
	Platforms     []Platform `json:"platforms"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	Status        PostStatus `json:"status"`
	Source        PostSource `json:"source"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PlatformPost is one platform-specific publish attempt unit, one per
// (post, platform) pair. Owned exclusively by the publisher and retry queue.
type PlatformPost struct {
	ID           string             `json:"id"`
	PostID       string             `json:"post_id"`
	Platform     Platform           `json:"platform"`
	Content      string             `json:"content"`
	Status       PlatformPostStatus `json:"status"`
	ExternalID   *string            `json:"external_id,omitempty"`
	ErrorCode    *string            `json:"error_code,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	Attempts     int                `json:"attempts"`
	PublishedAt  *time.Time         `json:"published_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// PlatformConnection is a user's OAuth link to one platform account. The
// publisher reads connections but never writes them; token acquisition and
// refresh live elsewhere.
type PlatformConnection struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Platform       Platform  `json:"platform"`
	PlatformUserID string    `json:"platform_user_id"`
	// TargetID is the platform-side publish target: a Facebook page id or a
	// Pinterest board id. Empty for platforms that publish to the account itself.
	TargetID    string    `json:"target_id,omitempty"`
	AccessToken string    `json:"-"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
