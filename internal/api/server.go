package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/models"
	"social-publisher/internal/store"
	"social-publisher/internal/telemetry"
)

// PostStore is the slice of the persistent store the ops API needs.
type PostStore interface {
	CreatePost(ctx context.Context, p store.CreatePostParams) (models.Post, error)
	GetPost(ctx context.Context, id string) (models.Post, error)
	ListPlatformPosts(ctx context.Context, postID string) ([]models.PlatformPost, error)
	GetPlatformPost(ctx context.Context, id string) (models.PlatformPost, error)
	ClaimPostForPublish(ctx context.Context, id string) (models.Post, bool, error)
	CancelScheduledPost(ctx context.Context, id string) (bool, error)
}

// RetryQueue exposes the operator-facing retry controls.
type RetryQueue interface {
	List(ctx context.Context, f store.RetryJobFilter) ([]models.RetryJob, error)
	Stats(ctx context.Context) (store.RetryQueueStats, error)
	ForceRetryNow(ctx context.Context, jobID string) (bool, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
}

// Publisher handles a post claimed for immediate publication.
type Publisher interface {
	PublishPost(ctx context.Context, post models.Post) error
}

// Server wires the operator-facing HTTP handlers.
type Server struct {
	cfg       config.Config
	store     PostStore
	retries   RetryQueue
	publisher Publisher
	log       zerolog.Logger
}

// New constructs the ops API server.
func New(cfg config.Config, st PostStore, retries RetryQueue, pub Publisher, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		retries:   retries,
		publisher: pub,
		log:       log.With().Str("component", "api").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/posts", s.handleCreatePost)
	r.Get("/posts/{id}", s.handleGetPost)
	r.Post("/posts/{id}/publish", s.handlePublishNow)
	r.Post("/posts/{id}/cancel", s.handleCancelPost)
	r.Get("/platform-posts/{id}", s.handleGetPlatformPost)

	r.Get("/retry-jobs", s.handleListRetryJobs)
	r.Get("/retry-jobs/stats", s.handleRetryStats)
	r.Post("/retry-jobs/{id}/retry", s.handleForceRetry)
	r.Post("/retry-jobs/{id}/cancel", s.handleCancelRetry)
	return r
}

type postResponse struct {
	Post          models.Post           `json:"post"`
	PlatformPosts []models.PlatformPost `json:"platform_posts"`
}

type createPostRequest struct {
	UserID        string            `json:"user_id"`
	Content       string            `json:"content"`
	Images        []string          `json:"images"`
	Hashtags      []string          `json:"hashtags"`
	Platforms     []models.Platform `json:"platforms"`
	ScheduledTime *time.Time        `json:"scheduled_time"`
	Source        models.PostSource `json:"source"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Content == "" && len(req.Images) == 0 {
		http.Error(w, "content or images required", http.StatusBadRequest)
		return
	}
	if len(req.Platforms) == 0 {
		http.Error(w, "at least one platform required", http.StatusBadRequest)
		return
	}
	for _, p := range req.Platforms {
		if !models.KnownPlatform(p) {
			http.Error(w, "unknown platform: "+string(p), http.StatusBadRequest)
			return
		}
	}
	if req.ScheduledTime != nil && req.ScheduledTime.Before(time.Now().UTC()) {
		http.Error(w, "scheduled_time is in the past", http.StatusBadRequest)
		return
	}

	post, err := s.store.CreatePost(r.Context(), store.CreatePostParams{
		UserID:        req.UserID,
		Content:       req.Content,
		Images:        req.Images,
		Hashtags:      req.Hashtags,
		Platforms:     req.Platforms,
		ScheduledTime: req.ScheduledTime,
		Source:        req.Source,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info().Str("post_id", post.ID).Str("status", string(post.Status)).Msg("post created")
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := s.store.GetPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	platformPosts, err := s.store.ListPlatformPosts(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, postResponse{Post: post, PlatformPosts: platformPosts})
}

func (s *Server) handleGetPlatformPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pp, err := s.store.GetPlatformPost(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "platform post not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pp)
}

// handlePublishNow claims the post for immediate publication regardless of
// its schedule and dispatches it in the background.
func (s *Server) handlePublishNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, ok, err := s.store.ClaimPostForPublish(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "post is not in a publishable state", http.StatusConflict)
		return
	}

	go func() {
		// Detach from the request context; publication outlives the request.
		if err := s.publisher.PublishPost(context.Background(), post); err != nil {
			s.log.Error().Err(err).Str("post_id", post.ID).Msg("publish now")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "publishing"})
}

// handleCancelPost cancels a post that is still scheduled. A post already
// claimed by the scheduler cannot be cancelled; the atomic claim resolves
// the race one way or the other, never both.
func (s *Server) handleCancelPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.store.CancelScheduledPost(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "post already claimed or not scheduled", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleListRetryJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RetryJobFilter{
		JobType:  q.Get("type"),
		Status:   models.RetryJobStatus(q.Get("status")),
		Platform: models.Platform(q.Get("platform")),
		UserID:   q.Get("user_id"),
		Limit:    100,
	}
	jobs, err := s.retries.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleRetryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.retries.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleForceRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.retries.ForceRetryNow(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "job not found or in flight", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retry_scheduled"})
}

func (s *Server) handleCancelRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.retries.Cancel(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
