package store

import (
	"context"
	"fmt"
	"time"

	"social-publisher/internal/models"
)

// ReclaimStats counts rows recovered by one reclamation pass.
type ReclaimStats struct {
	RetryJobs     int64
	PlatformPosts int64
	Posts         int64
}

func (r ReclaimStats) Empty() bool {
	return r.RetryJobs == 0 && r.PlatformPosts == 0 && r.Posts == 0
}

// ReclaimStale recovers claimed-but-unresolved state left behind by a crash
// or an interrupted shutdown. A claim is a lease, not a promise: any row
// whose claimed status has not been touched since the cutoff is assumed
// abandoned and put back where a claim query can see it.
//
// Three kinds of rows are recovered in one transaction:
//   - in_flight retry jobs go back to pending, due immediately;
//   - publishing platform posts become failed_retryable with a pending retry
//     job, so the retry scanner re-drives them (attempt count unchanged: the
//     interrupted attempt may or may not have reached the platform);
//   - publishing posts whose platform posts have all since resolved are
//     settled to their derived terminal status.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time, maxAttempts int) (ReclaimStats, error) {
	var stats ReclaimStats

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("begin reclaim: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE retry_jobs SET status = $1, next_retry_at = NOW(), updated_at = NOW()
		WHERE status = $2 AND updated_at < $3
	`, models.RetryPending, models.RetryInFlight, cutoff)
	if err != nil {
		return stats, fmt.Errorf("reclaim retry jobs: %w", err)
	}
	stats.RetryJobs = tag.RowsAffected()

	rows, err := tx.Query(ctx, `
		UPDATE platform_posts
		SET status = $1, error_code = 'publish_interrupted',
		    error_message = 'claim expired before an outcome was recorded', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM platform_posts
			WHERE status = $2 AND updated_at < $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`, models.PlatformFailedRetryable, models.PlatformPublishing, cutoff)
	if err != nil {
		return stats, fmt.Errorf("reclaim platform posts: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan reclaimed id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("reclaim platform posts: %w", err)
	}
	stats.PlatformPosts = int64(len(ids))

	if len(ids) > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO retry_jobs (id, job_type, platform_post_id, post_id, user_id, platform, status, attempts, max_attempts, next_retry_at, last_error, created_at, updated_at)
			SELECT gen_random_uuid()::text, $1, pp.id, pp.post_id, p.user_id, pp.platform, $2, pp.attempts, $3, NOW(), pp.error_message, NOW(), NOW()
			FROM platform_posts pp
			JOIN posts p ON p.id = pp.post_id
			WHERE pp.id = ANY($4)
			ON CONFLICT (platform_post_id) DO NOTHING
		`, models.JobTypePlatformPublish, models.RetryPending, maxAttempts, ids)
		if err != nil {
			return stats, fmt.Errorf("insert reclaim retry jobs: %w", err)
		}
	}

	tag, err = tx.Exec(ctx, `
		UPDATE posts SET status = settled.status, updated_at = NOW()
		FROM (
			SELECT p.id, CASE WHEN bool_or(pp.status = $1) THEN $2 ELSE $3 END AS status
			FROM posts p
			JOIN platform_posts pp ON pp.post_id = p.id
			WHERE p.status = $4 AND p.updated_at < $5
			GROUP BY p.id
			HAVING bool_and(pp.status IN ($1, $6))
		) settled
		WHERE posts.id = settled.id
	`, models.PlatformFailedTerminal, models.PostFailed, models.PostPublished, models.PostPublishing, cutoff, models.PlatformPublished)
	if err != nil {
		return stats, fmt.Errorf("settle stale posts: %w", err)
	}
	stats.Posts = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("commit reclaim: %w", err)
	}
	return stats, nil
}
