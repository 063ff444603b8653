package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/models"
	"social-publisher/internal/store"
	"social-publisher/internal/telemetry"
)

// QueueStore is the slice of the persistent store the retry queue needs.
type QueueStore interface {
	InsertRetryJob(ctx context.Context, job models.RetryJob) (bool, error)
	RearmRetryJob(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error
	ResolveRetryJob(ctx context.Context, id string) error
	ForceRetryNow(ctx context.Context, id string) (bool, error)
	CancelRetryJob(ctx context.Context, id string) (bool, error)
	ListRetryJobs(ctx context.Context, f store.RetryJobFilter) ([]models.RetryJob, error)
	GetRetryQueueStats(ctx context.Context) (store.RetryQueueStats, error)
}

// Queue owns the durable retry schedule. Retries live in Postgres, not in
// process timers, so pending retries survive a crash or deploy.
type Queue struct {
	store QueueStore
	cfg   config.Config
	log   zerolog.Logger
}

func NewQueue(st QueueStore, cfg config.Config, log zerolog.Logger) *Queue {
	return &Queue{store: st, cfg: cfg, log: log.With().Str("component", "retry_queue").Logger()}
}

// Schedule enqueues a retry for a failed platform post. attempt is the
// number of attempts already made; it decides the backoff step. The insert
// is idempotent per platform post: if a live job already exists nothing
// changes and no error is returned.
func (q *Queue) Schedule(ctx context.Context, pp models.PlatformPost, userID string, attempt int, cause string) error {
	delay := Backoff(q.cfg.BackoffBase, q.cfg.BackoffMax, attempt)
	job := models.RetryJob{
		JobType:        models.JobTypePlatformPublish,
		PlatformPostID: pp.ID,
		PostID:         pp.PostID,
		UserID:         userID,
		Platform:       pp.Platform,
		Attempts:       attempt,
		MaxAttempts:    q.cfg.MaxAttempts,
		NextRetryAt:    time.Now().UTC().Add(delay),
		LastError:      &cause,
	}
	inserted, err := q.store.InsertRetryJob(ctx, job)
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}
	if inserted {
		telemetry.RetriesScheduled.Inc()
		q.log.Info().
			Str("platform_post_id", pp.ID).
			Str("platform", string(pp.Platform)).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retry scheduled")
	}
	return nil
}

// Reschedule re-arms an in-flight job after another retryable failure,
// with the next backoff step applied. attempt is the number of attempts
// already made.
func (q *Queue) Reschedule(ctx context.Context, jobID string, attempt int, cause string) error {
	delay := Backoff(q.cfg.BackoffBase, q.cfg.BackoffMax, attempt)
	if err := q.store.RearmRetryJob(ctx, jobID, attempt, time.Now().UTC().Add(delay), cause); err != nil {
		return fmt.Errorf("reschedule retry: %w", err)
	}
	telemetry.RetriesScheduled.Inc()
	q.log.Info().Str("job_id", jobID).Int("attempt", attempt).Dur("delay", delay).Msg("retry rescheduled")
	return nil
}

// Resolve removes a job whose platform post reached a terminal state.
func (q *Queue) Resolve(ctx context.Context, jobID string) error {
	return q.store.ResolveRetryJob(ctx, jobID)
}

// ForceRetryNow is the operator escape hatch: the job becomes due
// immediately, bypassing its backoff.
func (q *Queue) ForceRetryNow(ctx context.Context, jobID string) (bool, error) {
	ok, err := q.store.ForceRetryNow(ctx, jobID)
	if err != nil {
		return false, err
	}
	if ok {
		q.log.Info().Str("job_id", jobID).Msg("retry forced")
	}
	return ok, nil
}

// Cancel removes a job, leaving its platform post in its current failed
// state with no further automatic retry.
func (q *Queue) Cancel(ctx context.Context, jobID string) (bool, error) {
	ok, err := q.store.CancelRetryJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	if ok {
		q.log.Info().Str("job_id", jobID).Msg("retry cancelled")
	}
	return ok, nil
}

// List returns live jobs matching the filter.
func (q *Queue) List(ctx context.Context, f store.RetryJobFilter) ([]models.RetryJob, error) {
	return q.store.ListRetryJobs(ctx, f)
}

// Stats returns a read-only snapshot of live job counts.
func (q *Queue) Stats(ctx context.Context) (store.RetryQueueStats, error) {
	return q.store.GetRetryQueueStats(ctx)
}
