package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/media"
	"social-publisher/internal/models"
	"social-publisher/internal/notify"
	"social-publisher/internal/platform"
	"social-publisher/internal/render"
	"social-publisher/internal/store"
	"social-publisher/internal/telemetry"
)

// Store is the slice of the persistent store the publisher needs.
type Store interface {
	GetPost(ctx context.Context, id string) (models.Post, error)
	EnsurePlatformPosts(ctx context.Context, post models.Post) ([]models.PlatformPost, error)
	ClaimPlatformPost(ctx context.Context, id string) (models.PlatformPost, bool, error)
	MarkPlatformPublished(ctx context.Context, id, externalID, content string, attempts int) error
	MarkPlatformFailed(ctx context.Context, id string, status models.PlatformPostStatus, code, message string, attempts int) error
	RefreshPostStatus(ctx context.Context, postID string) (models.PostStatus, error)
	GetConnection(ctx context.Context, userID string, platform models.Platform) (models.PlatformConnection, error)
}

// RetryScheduler owns the durable retry schedule for failed attempts.
// Implemented by the retry queue.
type RetryScheduler interface {
	Schedule(ctx context.Context, pp models.PlatformPost, userID string, attempt int, cause string) error
	Reschedule(ctx context.Context, jobID string, attempt int, cause string) error
	Resolve(ctx context.Context, jobID string) error
}

// Limiter gates publish calls per platform. May be nil when rate limiting is
// not configured.
type Limiter interface {
	Allow(ctx context.Context, p models.Platform) (bool, error)
}

// Publisher orchestrates publishing one post across all its target
// platforms. Platform attempts are independent: one platform's failure never
// blocks or rolls back another's, and partial success is an expected end
// state.
type Publisher struct {
	store     Store
	adapters  *platform.Registry
	formatter render.Formatter
	media     media.Resolver
	retries   RetryScheduler
	limiter   Limiter
	sink      notify.Sink
	cfg       config.Config
	log       zerolog.Logger
}

func New(st Store, adapters *platform.Registry, formatter render.Formatter, resolver media.Resolver, retries RetryScheduler, limiter Limiter, sink notify.Sink, cfg config.Config, log zerolog.Logger) *Publisher {
	return &Publisher{
		store:     st,
		adapters:  adapters,
		formatter: formatter,
		media:     resolver,
		retries:   retries,
		limiter:   limiter,
		sink:      sink,
		cfg:       cfg,
		log:       log.With().Str("component", "publisher").Logger(),
	}
}

// PublishPost fans one claimed post out to all its target platforms, bounded
// by the per-post concurrency limit, then resolves the aggregate status once
// every platform attempt has settled.
func (p *Publisher) PublishPost(ctx context.Context, post models.Post) error {
	if post.Status != models.PostPublishing {
		return fmt.Errorf("post %s is not claimed for publishing (status %s)", post.ID, post.Status)
	}

	platformPosts, err := p.store.EnsurePlatformPosts(ctx, post)
	if err != nil {
		return fmt.Errorf("ensure platform posts: %w", err)
	}

	limit := p.cfg.PerPostConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, pp := range platformPosts {
		wg.Add(1)
		sem <- struct{}{}
		go func(pp models.PlatformPost) {
			defer wg.Done()
			defer func() { <-sem }()
			p.publishPlatform(ctx, post, pp, "", p.cfg.MaxAttempts)
		}(pp)
	}
	wg.Wait()

	return p.resolveAggregate(ctx, post)
}

// RetryPlatformPost re-drives a single claimed retry job. The job is
// resolved on any terminal outcome and re-armed on another retryable
// failure; an error return means no outcome was recorded and the caller
// should put the job back.
func (p *Publisher) RetryPlatformPost(ctx context.Context, job models.RetryJob) error {
	post, err := p.store.GetPost(ctx, job.PostID)
	if err != nil {
		return fmt.Errorf("load post for retry: %w", err)
	}
	// The job carries the attempt budget it was created with.
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = p.cfg.MaxAttempts
	}
	p.publishPlatform(ctx, post, models.PlatformPost{ID: job.PlatformPostID, PostID: job.PostID, Platform: job.Platform}, job.ID, maxAttempts)
	return p.resolveAggregate(ctx, post)
}

// publishPlatform runs one publish attempt for one platform post. jobID is
// empty on first dispatch and carries the retry job id on the retry path.
// The row is claimed before the adapter call and no lock is held across it;
// the outcome is written afterward as plain status updates.
func (p *Publisher) publishPlatform(ctx context.Context, post models.Post, pp models.PlatformPost, jobID string, maxAttempts int) {
	claimed, ok, err := p.store.ClaimPlatformPost(ctx, pp.ID)
	if err != nil {
		p.log.Error().Err(err).Str("platform_post_id", pp.ID).Msg("claim platform post")
		return
	}
	if !ok {
		// Already published, or another process holds it. Re-publishing a
		// published unit must be a no-op; if a stale retry job points at it,
		// drop the job.
		if jobID != "" {
			if err := p.retries.Resolve(ctx, jobID); err != nil {
				p.log.Error().Err(err).Str("job_id", jobID).Msg("resolve stale retry job")
			}
		}
		p.log.Debug().Str("platform_post_id", pp.ID).Msg("platform post not claimable, skipping")
		return
	}

	telemetry.InFlightPublishes.Inc()
	defer telemetry.InFlightPublishes.Dec()

	attempts := claimed.Attempts + 1
	externalID, content, perr := p.attempt(ctx, post, claimed)
	if perr == nil {
		if err := p.store.MarkPlatformPublished(ctx, claimed.ID, externalID, content, attempts); err != nil {
			p.log.Error().Err(err).Str("platform_post_id", claimed.ID).Msg("mark platform published")
			return
		}
		if jobID != "" {
			if err := p.retries.Resolve(ctx, jobID); err != nil {
				p.log.Error().Err(err).Str("job_id", jobID).Msg("resolve retry job")
			}
		}
		telemetry.PublishSuccess.Inc()
		p.sink.Notify(ctx, post.UserID, notify.EventPlatformPublished, map[string]any{
			"post_id":     post.ID,
			"platform":    string(claimed.Platform),
			"external_id": externalID,
		})
		p.log.Info().
			Str("post_id", post.ID).
			Str("platform", string(claimed.Platform)).
			Str("external_id", externalID).
			Int("attempts", attempts).
			Msg("platform published")
		return
	}

	p.recordFailure(ctx, post, claimed, attempts, maxAttempts, perr, jobID)
}

// recordFailure converts a typed publish failure into a state transition
// plus, for retryable cases with attempts left, a scheduled retry.
func (p *Publisher) recordFailure(ctx context.Context, post models.Post, pp models.PlatformPost, attempts, maxAttempts int, perr *platform.PublishError, jobID string) {
	retryable := perr.Retryable && attempts < maxAttempts
	exhausted := perr.Retryable && !retryable

	if retryable {
		if err := p.store.MarkPlatformFailed(ctx, pp.ID, models.PlatformFailedRetryable, perr.Code, perr.Message, attempts); err != nil {
			p.log.Error().Err(err).Str("platform_post_id", pp.ID).Msg("mark platform failed")
			return
		}
		telemetry.PublishRetryable.Inc()
		var err error
		if jobID == "" {
			err = p.retries.Schedule(ctx, pp, post.UserID, attempts, perr.Error())
		} else {
			err = p.retries.Reschedule(ctx, jobID, attempts, perr.Error())
		}
		if err != nil {
			// A failed_retryable unit without a live job would never be
			// retried or reported. Escalate to a terminal failure so the
			// outcome is recorded and the user is told.
			p.log.Error().Err(err).Str("platform_post_id", pp.ID).Msg("schedule retry, escalating to terminal")
			p.markTerminal(ctx, post, pp, attempts, perr, jobID, false)
			return
		}
		p.log.Warn().
			Str("post_id", post.ID).
			Str("platform", string(pp.Platform)).
			Str("code", perr.Code).
			Int("attempts", attempts).
			Msg("platform publish failed, will retry")
		return
	}

	p.markTerminal(ctx, post, pp, attempts, perr, jobID, exhausted)
}

// markTerminal records a terminal failure, drops the retry job if one exists,
// and notifies.
func (p *Publisher) markTerminal(ctx context.Context, post models.Post, pp models.PlatformPost, attempts int, perr *platform.PublishError, jobID string, exhausted bool) {
	if err := p.store.MarkPlatformFailed(ctx, pp.ID, models.PlatformFailedTerminal, perr.Code, perr.Message, attempts); err != nil {
		p.log.Error().Err(err).Str("platform_post_id", pp.ID).Msg("mark platform failed")
		return
	}
	if jobID != "" {
		if err := p.retries.Resolve(ctx, jobID); err != nil {
			p.log.Error().Err(err).Str("job_id", jobID).Msg("resolve retry job")
		}
	}
	telemetry.PublishTerminal.Inc()
	event := notify.EventPlatformFailed
	if exhausted {
		event = notify.EventRetriesExhausted
		telemetry.RetriesExhausted.Inc()
	}
	p.sink.Notify(ctx, post.UserID, event, map[string]any{
		"post_id":  post.ID,
		"platform": string(pp.Platform),
		"code":     perr.Code,
		"message":  perr.Message,
		"attempts": attempts,
	})
	p.log.Error().
		Str("post_id", post.ID).
		Str("platform", string(pp.Platform)).
		Str("code", perr.Code).
		Int("attempts", attempts).
		Bool("exhausted", exhausted).
		Msg("platform publish failed terminally")
}

// attempt performs the rendering, connection lookup, rate limiting, and
// adapter call for one claimed platform post. All failures come back as a
// typed PublishError so the caller can apply retry policy uniformly.
func (p *Publisher) attempt(ctx context.Context, post models.Post, pp models.PlatformPost) (externalID, content string, perr *platform.PublishError) {
	urls, err := p.media.Resolve(ctx, post)
	if err != nil {
		return "", "", &platform.PublishError{Code: "media_unavailable", Message: err.Error(), Retryable: true}
	}
	resolved := post
	resolved.Images = urls

	rendered, err := p.formatter.Render(resolved, pp.Platform)
	if err != nil {
		return "", "", &platform.PublishError{Code: "render_failed", Message: err.Error(), Retryable: false}
	}

	conn, err := p.store.GetConnection(ctx, post.UserID, pp.Platform)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", &platform.PublishError{Code: "no_active_connection", Message: err.Error(), Retryable: false}
		}
		return "", "", &platform.PublishError{Code: "internal_error", Message: err.Error(), Retryable: true}
	}

	if p.limiter != nil {
		allowed, err := p.limiter.Allow(ctx, pp.Platform)
		if err != nil {
			p.log.Warn().Err(err).Str("platform", string(pp.Platform)).Msg("rate limiter unavailable, proceeding")
		} else if !allowed {
			telemetry.RateLimitDeferrals.Inc()
			return "", "", &platform.PublishError{Code: "rate_limited", Message: "platform publish budget exhausted", Retryable: true}
		}
	}

	adapter, ok := p.adapters.Lookup(pp.Platform)
	if !ok {
		return "", "", &platform.PublishError{Code: "unsupported_platform", Message: string(pp.Platform), Retryable: false}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()
	result, err := adapter.Publish(callCtx, rendered, conn)
	if err != nil {
		var typed *platform.PublishError
		if errors.As(err, &typed) {
			return "", "", typed
		}
		// Unclassified adapter errors are treated as transient.
		return "", "", &platform.PublishError{Code: "unknown_error", Message: err.Error(), Retryable: true}
	}
	return result.ExternalID, rendered.Text, nil
}

// resolveAggregate recomputes the aggregate post status and emits the
// post-level event when the post settles.
func (p *Publisher) resolveAggregate(ctx context.Context, post models.Post) error {
	status, err := p.store.RefreshPostStatus(ctx, post.ID)
	if err != nil {
		return fmt.Errorf("refresh post status: %w", err)
	}
	switch status {
	case models.PostPublished:
		p.sink.Notify(ctx, post.UserID, notify.EventPostPublished, map[string]any{"post_id": post.ID})
	case models.PostFailed:
		p.sink.Notify(ctx, post.UserID, notify.EventPostFailed, map[string]any{"post_id": post.ID})
	}
	p.log.Info().Str("post_id", post.ID).Str("status", string(status)).Msg("aggregate status resolved")
	return nil
}
