package retry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/models"
	"social-publisher/internal/store"
	"social-publisher/internal/telemetry"
)

// Retrier re-drives one claimed retry job through the publisher's
// single-platform retry path. The retrier owns resolving or re-arming the
// job; the scanner only steps in when the retrier itself errors.
type Retrier interface {
	RetryPlatformPost(ctx context.Context, job models.RetryJob) error
}

// ScannerStore is the slice of the persistent store the scanner needs.
type ScannerStore interface {
	ClaimDueRetryJobs(ctx context.Context, now time.Time, limit int) ([]models.RetryJob, error)
	RearmRetryJob(ctx context.Context, id string, attempts int, nextRetryAt time.Time, lastError string) error
	ReclaimStale(ctx context.Context, cutoff time.Time, maxAttempts int) (store.ReclaimStats, error)
	GetRetryQueueStats(ctx context.Context) (store.RetryQueueStats, error)
}

// Scanner is the background loop that claims due retry jobs and re-drives
// them, on its own cadence separate from the due-post scheduler.
type Scanner struct {
	store   ScannerStore
	retrier Retrier
	cfg     config.Config
	log     zerolog.Logger
}

func NewScanner(st ScannerStore, retrier Retrier, cfg config.Config, log zerolog.Logger) *Scanner {
	return &Scanner{
		store:   st,
		retrier: retrier,
		cfg:     cfg,
		log:     log.With().Str("component", "retry_scanner").Logger(),
	}
}

// Run polls until the context is cancelled. A failed tick is logged and
// skipped; the claim is atomic so a failed attempt leaves no partial state.
func (s *Scanner) Run(ctx context.Context) error {
	interval := s.cfg.RetryScanInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("retry scanner started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	s.reclaim(ctx)

	if stats, err := s.store.GetRetryQueueStats(ctx); err == nil {
		telemetry.RetryQueueDepth.Set(float64(stats.Total))
	}

	jobs, err := s.store.ClaimDueRetryJobs(ctx, time.Now().UTC(), s.cfg.RetryBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("claim due retry jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}
	s.log.Info().Int("claimed", len(jobs)).Msg("retry jobs claimed")

	limit := s.cfg.MaxConcurrentPosts
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	// Shutdown stops claiming new work but must not abort attempts already
	// claimed; an aborted attempt strands its platform post in publishing
	// until the visibility timeout.
	ctx = context.WithoutCancel(ctx)
	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job models.RetryJob) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.retrier.RetryPlatformPost(ctx, job); err != nil {
				// Infrastructure failure before an outcome was recorded.
				// Put the job back with a short delay so it is not stuck
				// in flight; the attempt did not reach the platform, so
				// the attempt count stays.
				s.log.Error().Err(err).Str("job_id", job.ID).Msg("retry attempt errored")
				rearmAt := time.Now().UTC().Add(interval(s.cfg.RetryScanInterval))
				if err := s.store.RearmRetryJob(ctx, job.ID, job.Attempts, rearmAt, err.Error()); err != nil {
					s.log.Error().Err(err).Str("job_id", job.ID).Msg("rearm retry job")
				}
			}
		}(job)
	}
	wg.Wait()
}

// reclaim is the lease-expiry sweep: claimed rows not touched within the
// visibility timeout were abandoned by a crashed or interrupted process and
// are put back where the claim queries can see them.
func (s *Scanner) reclaim(ctx context.Context) {
	vis := s.cfg.VisibilityTimeout
	if vis <= 0 {
		vis = 10 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-vis)
	stats, err := s.store.ReclaimStale(ctx, cutoff, s.cfg.MaxAttempts)
	if err != nil {
		s.log.Error().Err(err).Msg("reclaim stale claims")
		return
	}
	if stats.Empty() {
		return
	}
	telemetry.StaleReclaimed.Add(float64(stats.RetryJobs + stats.PlatformPosts + stats.Posts))
	s.log.Warn().
		Int64("retry_jobs", stats.RetryJobs).
		Int64("platform_posts", stats.PlatformPosts).
		Int64("posts", stats.Posts).
		Msg("stale claims reclaimed")
}

func interval(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Minute
	}
	return d
}
