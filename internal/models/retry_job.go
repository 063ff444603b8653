package models

import "time"

// JobTypePlatformPublish is the only retry job type today. The column exists
// so other deferred work can share the queue later.
const JobTypePlatformPublish = "platform_publish"

// RetryJob is a durable work item representing a pending retry of one
// platform post. At most one live job exists per platform post; the row is
// deleted once the retry resolves either way.
type RetryJob struct {
	ID             string         `json:"id"`
	JobType        string         `json:"job_type"`
	PlatformPostID string         `json:"platform_post_id"`
	PostID         string         `json:"post_id"`
	UserID         string         `json:"user_id"`
	Platform       Platform       `json:"platform"`
	Status         RetryJobStatus `json:"status"`
	Attempts       int            `json:"attempts"`
	MaxAttempts    int            `json:"max_attempts"`
	NextRetryAt    time.Time      `json:"next_retry_at"`
	LastError      *string        `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
