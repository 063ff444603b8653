package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"social-publisher/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps pgxpool for Postgres persistence. All cross-process coordination
// is expressed as conditional updates here rather than in-memory locks, since
// the scheduler and retry scanner may run as multiple replicas.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreatePostParams collects inputs required to insert a post.
type CreatePostParams struct {
	UserID        string
	Content       string
	Images        []string
	Hashtags      []string
	Platforms     []models.Platform
	ScheduledTime *time.Time
	Source        models.PostSource
}

// CreatePost inserts a post row. The post starts scheduled when a scheduled
// time is provided, draft otherwise.
func (s *Store) CreatePost(ctx context.Context, p CreatePostParams) (models.Post, error) {
	if p.Source == "" {
		p.Source = models.SourceManual
	}
	status := models.PostDraft
	if p.ScheduledTime != nil {
		status = models.PostScheduled
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (id, user_id, content, images, hashtags, platforms, scheduled_time, status, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, id, p.UserID, p.Content, p.Images, p.Hashtags, platformStrings(p.Platforms), p.ScheduledTime, status, p.Source, now)
	if err != nil {
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}

	return models.Post{
		ID:            id,
		UserID:        p.UserID,
		Content:       p.Content,
		Images:        p.Images,
		Hashtags:      p.Hashtags,
		Platforms:     p.Platforms,
		ScheduledTime: p.ScheduledTime,
		Status:        status,
		Source:        p.Source,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// GetPost fetches a post by id.
func (s *Store) GetPost(ctx context.Context, id string) (models.Post, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, content, images, hashtags, platforms, scheduled_time, status, source, created_at, updated_at
		FROM posts WHERE id = $1
	`, id)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("scan post: %w", err)
	}
	return post, nil
}

// ClaimDuePosts atomically transitions a bounded batch of due posts from
// scheduled to publishing and returns the claimed rows. Two concurrent ticks,
// or two scheduler replicas, never claim the same post because the inner
// select locks rows and skips ones locked by another claimer.
func (s *Store) ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE posts SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM posts
			WHERE status = $2 AND scheduled_time <= $3
			ORDER BY scheduled_time
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, content, images, hashtags, platforms, scheduled_time, status, source, created_at, updated_at
	`, models.PostPublishing, models.PostScheduled, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ClaimPostForPublish claims a single post for immediate publication
// regardless of its scheduled time. It reports false when the post is not in
// a claimable state (already publishing, published, or cancelled).
func (s *Store) ClaimPostForPublish(ctx context.Context, id string) (models.Post, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE posts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
		RETURNING id, user_id, content, images, hashtags, platforms, scheduled_time, status, source, created_at, updated_at
	`, models.PostPublishing, id, models.PostDraft, models.PostScheduled)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Post{}, false, nil
	}
	if err != nil {
		return models.Post{}, false, fmt.Errorf("claim post for publish: %w", err)
	}
	return post, true, nil
}

// CancelScheduledPost cancels a post that has not been claimed yet. It
// reports false when the post was already claimed, resolving the
// cancel-versus-claim race in the claimer's favor.
func (s *Store) CancelScheduledPost(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.PostCancelled, id, models.PostScheduled)
	if err != nil {
		return false, fmt.Errorf("cancel post: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RefreshPostStatus recomputes the aggregate post status from the current
// platform post states and persists it. The aggregate is never frozen: a
// manual retry that flips one platform back to published recomputes from
// whatever the platform rows say now.
func (s *Store) RefreshPostStatus(ctx context.Context, postID string) (models.PostStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status FROM platform_posts WHERE post_id = $1
	`, postID)
	if err != nil {
		return "", fmt.Errorf("list platform statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.PlatformPostStatus
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return "", fmt.Errorf("scan platform status: %w", err)
		}
		statuses = append(statuses, models.PlatformPostStatus(st))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	derived := models.DerivePostStatus(statuses)
	_, err = s.pool.Exec(ctx, `
		UPDATE posts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4)
	`, derived, postID, models.PostDraft, models.PostCancelled)
	if err != nil {
		return "", fmt.Errorf("update post status: %w", err)
	}
	return derived, nil
}

// GetConnection returns the user's active connection for a platform.
func (s *Store) GetConnection(ctx context.Context, userID string, platform models.Platform) (models.PlatformConnection, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, platform, platform_user_id, target_id, access_token, is_active, created_at, updated_at
		FROM platform_connections
		WHERE user_id = $1 AND platform = $2 AND is_active
	`, userID, platform)

	var conn models.PlatformConnection
	var pf string
	err := row.Scan(&conn.ID, &conn.UserID, &pf, &conn.PlatformUserID, &conn.TargetID, &conn.AccessToken, &conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PlatformConnection{}, fmt.Errorf("connection %s/%s: %w", userID, platform, ErrNotFound)
	}
	if err != nil {
		return models.PlatformConnection{}, fmt.Errorf("scan connection: %w", err)
	}
	conn.Platform = models.Platform(pf)
	return conn, nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var post models.Post
	var platforms []string
	var scheduled pgtype.Timestamptz
	var status, source string

	err := row.Scan(&post.ID, &post.UserID, &post.Content, &post.Images, &post.Hashtags, &platforms, &scheduled, &status, &source, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return models.Post{}, err
	}
	if scheduled.Valid {
		t := scheduled.Time
		post.ScheduledTime = &t
	}
	post.Status = models.PostStatus(status)
	post.Source = models.PostSource(source)
	post.Platforms = make([]models.Platform, 0, len(platforms))
	for _, p := range platforms {
		post.Platforms = append(post.Platforms, models.Platform(p))
	}
	return post, nil
}

func platformStrings(platforms []models.Platform) []string {
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, string(p))
	}
	return out
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
