package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"social-publisher/internal/models"
)

// EnsurePlatformPosts creates one pending platform post per target platform
// of the post, skipping pairs that already exist, and returns the full set.
// Safe to call again on a retried or re-published post.
func (s *Store) EnsurePlatformPosts(ctx context.Context, post models.Post) ([]models.PlatformPost, error) {
	now := time.Now().UTC()
	for _, platform := range post.Platforms {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO platform_posts (id, post_id, platform, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (post_id, platform) DO NOTHING
		`, uuid.New().String(), post.ID, platform, models.PlatformPending, now)
		if err != nil {
			return nil, fmt.Errorf("insert platform post %s/%s: %w", post.ID, platform, err)
		}
	}
	return s.ListPlatformPosts(ctx, post.ID)
}

// ListPlatformPosts returns all platform posts of a post.
func (s *Store) ListPlatformPosts(ctx context.Context, postID string) ([]models.PlatformPost, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, post_id, platform, content, status, external_id, error_code, error_message, attempts, published_at, created_at, updated_at
		FROM platform_posts WHERE post_id = $1 ORDER BY platform
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list platform posts: %w", err)
	}
	defer rows.Close()

	var out []models.PlatformPost
	for rows.Next() {
		pp, err := scanPlatformPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan platform post: %w", err)
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

// GetPlatformPost fetches one platform post by id.
func (s *Store) GetPlatformPost(ctx context.Context, id string) (models.PlatformPost, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, post_id, platform, content, status, external_id, error_code, error_message, attempts, published_at, created_at, updated_at
		FROM platform_posts WHERE id = $1
	`, id)
	pp, err := scanPlatformPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PlatformPost{}, fmt.Errorf("platform post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.PlatformPost{}, fmt.Errorf("scan platform post: %w", err)
	}
	return pp, nil
}

// ClaimPlatformPost conditionally transitions a platform post into
// publishing. Only pending and failed_retryable rows are claimable, which
// makes re-publishing an already published platform a no-op and keeps two
// concurrent claimers from both dispatching the same unit.
func (s *Store) ClaimPlatformPost(ctx context.Context, id string) (models.PlatformPost, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE platform_posts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
		RETURNING id, post_id, platform, content, status, external_id, error_code, error_message, attempts, published_at, created_at, updated_at
	`, models.PlatformPublishing, id, models.PlatformPending, models.PlatformFailedRetryable)
	pp, err := scanPlatformPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PlatformPost{}, false, nil
	}
	if err != nil {
		return models.PlatformPost{}, false, fmt.Errorf("claim platform post: %w", err)
	}
	return pp, true, nil
}

// MarkPlatformPublished records a successful publish with its external id.
func (s *Store) MarkPlatformPublished(ctx context.Context, id, externalID, content string, attempts int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE platform_posts
		SET status = $2, external_id = $3, content = $4, attempts = $5,
		    error_code = NULL, error_message = NULL, published_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id, models.PlatformPublished, externalID, content, attempts)
	if err != nil {
		return fmt.Errorf("mark platform published: %w", err)
	}
	return nil
}

// MarkPlatformFailed records a failed publish attempt with its error detail.
// The status decides whether the retry queue will pick the unit up again.
func (s *Store) MarkPlatformFailed(ctx context.Context, id string, status models.PlatformPostStatus, code, message string, attempts int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE platform_posts
		SET status = $2, error_code = $3, error_message = $4, attempts = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, code, message, attempts)
	if err != nil {
		return fmt.Errorf("mark platform failed: %w", err)
	}
	return nil
}

func scanPlatformPost(row pgx.Row) (models.PlatformPost, error) {
	var pp models.PlatformPost
	var platform, status string
	var externalID, errCode, errMsg pgtype.Text
	var publishedAt pgtype.Timestamptz

	err := row.Scan(&pp.ID, &pp.PostID, &platform, &pp.Content, &status, &externalID, &errCode, &errMsg, &pp.Attempts, &publishedAt, &pp.CreatedAt, &pp.UpdatedAt)
	if err != nil {
		return models.PlatformPost{}, err
	}
	pp.Platform = models.Platform(platform)
	pp.Status = models.PlatformPostStatus(status)
	pp.ExternalID = textPtr(externalID)
	pp.ErrorCode = textPtr(errCode)
	pp.ErrorMessage = textPtr(errMsg)
	if publishedAt.Valid {
		t := publishedAt.Time
		pp.PublishedAt = &t
	}
	return pp, nil
}
