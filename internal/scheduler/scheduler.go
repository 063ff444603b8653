package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/models"
	"social-publisher/internal/telemetry"
)

// Store is the slice of the persistent store the scheduler needs: the atomic
// batch claim of due posts.
type Store interface {
	ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error)
}

// Publisher handles one claimed post end to end.
type Publisher interface {
	PublishPost(ctx context.Context, post models.Post) error
}

// Scheduler is the due-post poller. Each tick claims a bounded batch of due
// posts and hands them to the publisher without waiting for publication to
// finish; platform API calls must never stall the poll loop.
type Scheduler struct {
	store     Store
	publisher Publisher
	cfg       config.Config
	log       zerolog.Logger

	// wg tracks in-flight publishes so Run can drain on shutdown.
	wg  sync.WaitGroup
	sem chan struct{}
}

func New(st Store, pub Publisher, cfg config.Config, log zerolog.Logger) *Scheduler {
	limit := cfg.MaxConcurrentPosts
	if limit <= 0 {
		limit = 1
	}
	return &Scheduler{
		store:     st,
		publisher: pub,
		cfg:       cfg,
		log:       log.With().Str("component", "scheduler").Logger(),
		sem:       make(chan struct{}, limit),
	}
}

// Run polls until the context is cancelled, then drains in-flight publishes.
// A tick that cannot reach the store is logged and skipped; the claim is
// atomic, so a failed claim attempt leaves nothing half-dispatched.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.cfg.SchedulerInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Int("batch", s.cfg.SchedulerBatchSize).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	posts, err := s.store.ClaimDuePosts(ctx, time.Now().UTC(), s.cfg.SchedulerBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("claim due posts")
		return
	}
	if len(posts) == 0 {
		return
	}
	telemetry.PostsClaimed.Add(float64(len(posts)))
	s.log.Info().Int("claimed", len(posts)).Msg("due posts claimed")

	// Shutdown cancels the poll loop, not posts already claimed: a cancelled
	// publish would strand its platform posts in publishing. Run drains via
	// the wait group; each adapter call is still bounded by its own timeout.
	ctx = context.WithoutCancel(ctx)
	for _, post := range posts {
		s.wg.Add(1)
		s.sem <- struct{}{}
		go func(post models.Post) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			if err := s.publisher.PublishPost(ctx, post); err != nil {
				s.log.Error().Err(err).Str("post_id", post.ID).Msg("publish post")
			}
		}(post)
	}
}
