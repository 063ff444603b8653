package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"social-publisher/internal/models"
)

// InsertRetryJob creates a pending retry job for a platform post. The unique
// index on platform_post_id keeps at most one live job per failing unit; a
// conflicting insert reports false and leaves the existing job untouched.
func (s *Store) InsertRetryJob(ctx context.Context, job models.RetryJob) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.JobType == "" {
		job.JobType = models.JobTypePlatformPublish
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO retry_jobs (id, job_type, platform_post_id, post_id, user_id, platform, status, attempts, max_attempts, next_retry_at, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (platform_post_id) DO NOTHING
	`, job.ID, job.JobType, job.PlatformPostID, job.PostID, job.UserID, job.Platform, models.RetryPending, job.Attempts, job.MaxAttempts, job.NextRetryAt, job.LastError)
	if err != nil {
		return false, fmt.Errorf("insert retry job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimDueRetryJobs atomically claims a bounded batch of due jobs using the
// same skip-locked discipline as the due-post claim.
func (s *Store) ClaimDueRetryJobs(ctx context.Context, now time.Time, limit int) ([]models.RetryJob, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE retry_jobs SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM retry_jobs
			WHERE status = $2 AND next_retry_at <= $3
			ORDER BY next_retry_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_type, platform_post_id, post_id, user_id, platform, status, attempts, max_attempts, next_retry_at, last_error, created_at, updated_at
	`, models.RetryInFlight, models.RetryPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due retry jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.RetryJob
	for rows.Next() {
		job, err := scanRetryJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claimed retry job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RearmRetryJob puts a claimed job back to pending with updated attempt
// bookkeeping and a later due time.
func (s *Store) RearmRetryJob(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE retry_jobs
		SET status = $2, attempts = $3, next_retry_at = $4, last_error = $5, updated_at = NOW()
		WHERE id = $1
	`, id, models.RetryPending, attempts, nextRetryAt, lastError)
	if err != nil {
		return fmt.Errorf("rearm retry job: %w", err)
	}
	return nil
}

// ResolveRetryJob removes a job once its platform post reached a terminal
// state, whichever way it resolved.
func (s *Store) ResolveRetryJob(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM retry_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("resolve retry job: %w", err)
	}
	return nil
}

// ForceRetryNow resets a pending job's due time to now, bypassing backoff.
// It reports false when the job does not exist or is currently in flight.
func (s *Store) ForceRetryNow(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE retry_jobs SET next_retry_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, models.RetryPending)
	if err != nil {
		return false, fmt.Errorf("force retry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CancelRetryJob removes a job without touching its platform post, leaving
// the unit in its current failed state with no further automatic retry.
func (s *Store) CancelRetryJob(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM retry_jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("cancel retry job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RetryJobFilter narrows ListRetryJobs. Zero values match everything.
type RetryJobFilter struct {
	JobType  string
	Status   models.RetryJobStatus
	Platform models.Platform
	UserID   string
	Limit    int
}

// ListRetryJobs returns live jobs matching the filter, soonest first.
func (s *Store) ListRetryJobs(ctx context.Context, f RetryJobFilter) ([]models.RetryJob, error) {
	query := `
		SELECT id, job_type, platform_post_id, post_id, user_id, platform, status, attempts, max_attempts, next_retry_at, last_error, created_at, updated_at
		FROM retry_jobs WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += " AND " + clause + "$" + strconv.Itoa(len(args))
	}
	if f.JobType != "" {
		add("job_type = ", f.JobType)
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}
	if f.Platform != "" {
		add("platform = ", f.Platform)
	}
	if f.UserID != "" {
		add("user_id = ", f.UserID)
	}
	query += " ORDER BY next_retry_at"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list retry jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.RetryJob
	for rows.Next() {
		job, err := scanRetryJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retry job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RetryQueueStats is a read-only snapshot of live job counts for monitoring.
type RetryQueueStats struct {
	Total      int64                           `json:"total"`
	ByStatus   map[models.RetryJobStatus]int64 `json:"by_status"`
	ByPlatform map[models.Platform]int64       `json:"by_platform"`
}

// GetRetryQueueStats counts live jobs grouped by status and platform.
func (s *Store) GetRetryQueueStats(ctx context.Context) (RetryQueueStats, error) {
	stats := RetryQueueStats{
		ByStatus:   make(map[models.RetryJobStatus]int64),
		ByPlatform: make(map[models.Platform]int64),
	}
	rows, err := s.pool.Query(ctx, `
		SELECT status, platform, COUNT(*) FROM retry_jobs GROUP BY status, platform
	`)
	if err != nil {
		return stats, fmt.Errorf("retry queue stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, platform string
		var n int64
		if err := rows.Scan(&status, &platform, &n); err != nil {
			return stats, fmt.Errorf("scan stats row: %w", err)
		}
		stats.Total += n
		stats.ByStatus[models.RetryJobStatus(status)] += n
		stats.ByPlatform[models.Platform(platform)] += n
	}
	return stats, rows.Err()
}

func scanRetryJob(row pgx.Row) (models.RetryJob, error) {
	var job models.RetryJob
	var platform, status string
	var lastErr pgtype.Text

	err := row.Scan(&job.ID, &job.JobType, &job.PlatformPostID, &job.PostID, &job.UserID, &platform, &status, &job.Attempts, &job.MaxAttempts, &job.NextRetryAt, &lastErr, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return models.RetryJob{}, err
	}
	job.Platform = models.Platform(platform)
	job.Status = models.RetryJobStatus(status)
	job.LastError = textPtr(lastErr)
	return job, nil
}
