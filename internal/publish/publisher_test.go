package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"social-publisher/internal/config"
	"social-publisher/internal/media"
	"social-publisher/internal/models"
	"social-publisher/internal/platform"
	"social-publisher/internal/render"
	"social-publisher/internal/store"
)

// fakeStore is an in-memory publish.Store.
type fakeStore struct {
	mu            sync.Mutex
	posts         map[string]*models.Post
	platformPosts map[string]*models.PlatformPost
	connections   map[string]models.PlatformConnection
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts:         make(map[string]*models.Post),
		platformPosts: make(map[string]*models.PlatformPost),
		connections:   make(map[string]models.PlatformConnection),
	}
}

func ppID(postID string, p models.Platform) string {
	return postID + ":" + string(p)
}

func (f *fakeStore) addPost(post models.Post) models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[post.ID] = &post
	return post
}

func (f *fakeStore) addConnection(userID string, p models.Platform) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections[userID+"|"+string(p)] = models.PlatformConnection{
		ID: "conn-" + string(p), UserID: userID, Platform: p,
		PlatformUserID: "acct", TargetID: "target", AccessToken: "token", IsActive: true,
	}
}

func (f *fakeStore) GetPost(_ context.Context, id string) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return models.Post{}, fmt.Errorf("post %s: %w", id, store.ErrNotFound)
	}
	return *post, nil
}

func (f *fakeStore) EnsurePlatformPosts(_ context.Context, post models.Post) ([]models.PlatformPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PlatformPost
	for _, p := range post.Platforms {
		id := ppID(post.ID, p)
		if _, ok := f.platformPosts[id]; !ok {
			f.platformPosts[id] = &models.PlatformPost{
				ID: id, PostID: post.ID, Platform: p, Status: models.PlatformPending,
			}
		}
		out = append(out, *f.platformPosts[id])
	}
	return out, nil
}

func (f *fakeStore) ClaimPlatformPost(_ context.Context, id string) (models.PlatformPost, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pp, ok := f.platformPosts[id]
	if !ok {
		return models.PlatformPost{}, false, fmt.Errorf("platform post %s: %w", id, store.ErrNotFound)
	}
	if pp.Status != models.PlatformPending && pp.Status != models.PlatformFailedRetryable {
		return models.PlatformPost{}, false, nil
	}
	pp.Status = models.PlatformPublishing
	return *pp, true, nil
}

func (f *fakeStore) MarkPlatformPublished(_ context.Context, id, externalID, content string, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pp := f.platformPosts[id]
	pp.Status = models.PlatformPublished
	pp.ExternalID = &externalID
	pp.Content = content
	pp.Attempts = attempts
	return nil
}

func (f *fakeStore) MarkPlatformFailed(_ context.Context, id string, status models.PlatformPostStatus, code, message string, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pp := f.platformPosts[id]
	pp.Status = status
	pp.ErrorCode = &code
	pp.ErrorMessage = &message
	pp.Attempts = attempts
	return nil
}

func (f *fakeStore) RefreshPostStatus(_ context.Context, postID string) (models.PostStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var statuses []models.PlatformPostStatus
	for _, pp := range f.platformPosts {
		if pp.PostID == postID {
			statuses = append(statuses, pp.Status)
		}
	}
	derived := models.DerivePostStatus(statuses)
	if post, ok := f.posts[postID]; ok {
		post.Status = derived
	}
	return derived, nil
}

func (f *fakeStore) GetConnection(_ context.Context, userID string, p models.Platform) (models.PlatformConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.connections[userID+"|"+string(p)]
	if !ok {
		return models.PlatformConnection{}, fmt.Errorf("connection: %w", store.ErrNotFound)
	}
	return conn, nil
}

func (f *fakeStore) status(id string) models.PlatformPostStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.platformPosts[id].Status
}

// fakeRetries records retry scheduling calls.
type fakeRetries struct {
	mu          sync.Mutex
	scheduleErr error
	scheduled   []int // attempt numbers passed to Schedule
	rescheduled []int
	resolved    []string
}

func (f *fakeRetries) Schedule(_ context.Context, _ models.PlatformPost, _ string, attempt int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return f.scheduleErr
	}
	f.scheduled = append(f.scheduled, attempt)
	return nil
}

func (f *fakeRetries) Reschedule(_ context.Context, _ string, attempt int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescheduled = append(f.rescheduled, attempt)
	return nil
}

func (f *fakeRetries) Resolve(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, jobID)
	return nil
}

// fakeSink records notifications.
type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSink) Notify(_ context.Context, _ string, event string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSink) has(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == event {
			return true
		}
	}
	return false
}

// fakeAdapter returns a canned result or error and counts calls.
type fakeAdapter struct {
	platform models.Platform
	err      error
	mu       sync.Mutex
	calls    int
}

func (a *fakeAdapter) Platform() models.Platform { return a.platform }

func (a *fakeAdapter) Publish(_ context.Context, _ platform.Content, _ models.PlatformConnection) (platform.PublishResult, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.err != nil {
		return platform.PublishResult{}, a.err
	}
	return platform.PublishResult{ExternalID: "ext-" + string(a.platform)}, nil
}

func (a *fakeAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func testConfig() config.Config {
	cfg := config.Load()
	cfg.MaxAttempts = 3
	cfg.PerPostConcurrency = 2
	return cfg
}

func newTestPublisher(st *fakeStore, retries *fakeRetries, sink *fakeSink, adapters ...platform.Adapter) *Publisher {
	return New(st, platform.NewRegistry(adapters...), render.NewPlatformFormatter(), media.PassthroughResolver{}, retries, nil, sink, testConfig(), zerolog.Nop())
}

func claimedPost(st *fakeStore, id, userID string, platforms ...models.Platform) models.Post {
	return st.addPost(models.Post{
		ID: id, UserID: userID, Content: "hello world",
		Platforms: platforms, Status: models.PostPublishing,
	})
}

func TestPublishPostAllPlatformsSucceed(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	fb := &fakeAdapter{platform: models.PlatformFacebook}
	x := &fakeAdapter{platform: models.PlatformX}
	pub := newTestPublisher(st, retries, sink, fb, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformFacebook, models.PlatformX)
	st.addConnection("user-1", models.PlatformFacebook)
	st.addConnection("user-1", models.PlatformX)

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := st.status(ppID("post-1", models.PlatformFacebook)); got != models.PlatformPublished {
		t.Fatalf("facebook status: %s", got)
	}
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformPublished {
		t.Fatalf("x status: %s", got)
	}
	if st.posts["post-1"].Status != models.PostPublished {
		t.Fatalf("aggregate: %s", st.posts["post-1"].Status)
	}
	if !sink.has("post.published") {
		t.Fatal("missing post.published notification")
	}
	if len(retries.scheduled) != 0 {
		t.Fatalf("unexpected retries scheduled: %v", retries.scheduled)
	}
}

func TestPublishPostRetryableFailureSchedulesRetry(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX, err: &platform.PublishError{Code: "rate_limited", Message: "429", Retryable: true}}
	pub := newTestPublisher(st, retries, sink, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformFailedRetryable {
		t.Fatalf("status: %s", got)
	}
	if len(retries.scheduled) != 1 || retries.scheduled[0] != 1 {
		t.Fatalf("scheduled: %v", retries.scheduled)
	}
	// Retry pending keeps the aggregate open.
	if st.posts["post-1"].Status != models.PostPublishing {
		t.Fatalf("aggregate: %s", st.posts["post-1"].Status)
	}
}

func TestPublishPostTerminalFailure(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	fb := &fakeAdapter{platform: models.PlatformFacebook, err: &platform.PublishError{Code: "auth_failed", Message: "401", Retryable: false}}
	pub := newTestPublisher(st, retries, sink, fb)

	post := claimedPost(st, "post-1", "user-1", models.PlatformFacebook)
	st.addConnection("user-1", models.PlatformFacebook)

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := st.status(ppID("post-1", models.PlatformFacebook)); got != models.PlatformFailedTerminal {
		t.Fatalf("status: %s", got)
	}
	if len(retries.scheduled) != 0 {
		t.Fatalf("terminal failure must not schedule a retry: %v", retries.scheduled)
	}
	if !sink.has("platform.failed") || !sink.has("post.failed") {
		t.Fatalf("missing failure notifications, got %v", sink.events)
	}
}

func TestScheduleFailureEscalatesToTerminal(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{scheduleErr: errors.New("retry store unreachable")}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX, err: &platform.PublishError{Code: "network_error", Message: "down", Retryable: true}}
	pub := newTestPublisher(st, retries, sink, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// A failed_retryable unit with no live retry job would never be driven
	// again; when the job cannot be recorded the failure must settle
	// terminally and notify.
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformFailedTerminal {
		t.Fatalf("status: %s", got)
	}
	if !sink.has("platform.failed") || !sink.has("post.failed") {
		t.Fatalf("missing failure notifications, got %v", sink.events)
	}
	if st.posts["post-1"].Status != models.PostFailed {
		t.Fatalf("aggregate: %s", st.posts["post-1"].Status)
	}
}

func TestRetryHonorsJobAttemptBudget(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX, err: &platform.PublishError{Code: "network_error", Message: "down", Retryable: true}}
	pub := newTestPublisher(st, retries, sink, x) // cfg.MaxAttempts = 3

	claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)
	st.platformPosts[ppID("post-1", models.PlatformX)] = &models.PlatformPost{
		ID: ppID("post-1", models.PlatformX), PostID: "post-1", Platform: models.PlatformX,
		Status: models.PlatformFailedRetryable, Attempts: 1,
	}

	// The job was created with a tighter budget than the current config.
	job := models.RetryJob{
		ID: "job-1", PlatformPostID: ppID("post-1", models.PlatformX),
		PostID: "post-1", UserID: "user-1", Platform: models.PlatformX,
		Attempts: 1, MaxAttempts: 2,
	}
	if err := pub.RetryPlatformPost(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformFailedTerminal {
		t.Fatalf("status: %s, want terminal at the job's budget", got)
	}
	if len(retries.rescheduled) != 0 {
		t.Fatalf("rescheduled past the job's budget: %v", retries.rescheduled)
	}
	if !sink.has("platform.retries_exhausted") {
		t.Fatalf("missing exhaustion notification, got %v", sink.events)
	}
}

func TestConcurrentPublishSingleAdapterCall(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX}
	pub := newTestPublisher(st, retries, sink, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)

	// Two dispatchers race on the same post; the conditional claim lets
	// exactly one through.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.PublishPost(context.Background(), post); err != nil {
				t.Errorf("publish: %v", err)
			}
		}()
	}
	wg.Wait()

	if x.callCount() != 1 {
		t.Fatalf("adapter called %d times, want 1", x.callCount())
	}
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformPublished {
		t.Fatalf("status: %s", got)
	}
}

func TestRepublishAlreadyPublishedIsNoOp(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX}
	pub := newTestPublisher(st, retries, sink, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)
	ext := "ext-old"
	st.platformPosts[ppID("post-1", models.PlatformX)] = &models.PlatformPost{
		ID: ppID("post-1", models.PlatformX), PostID: "post-1", Platform: models.PlatformX,
		Status: models.PlatformPublished, ExternalID: &ext, Attempts: 1,
	}

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if x.callCount() != 0 {
		t.Fatalf("adapter called %d times on published unit", x.callCount())
	}
	if got := *st.platformPosts[ppID("post-1", models.PlatformX)].ExternalID; got != "ext-old" {
		t.Fatalf("external id changed: %s", got)
	}
}

func TestMissingConnectionIsTerminal(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX}
	pub := newTestPublisher(st, retries, sink, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformX)
	// No connection added.

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	pp := st.platformPosts[ppID("post-1", models.PlatformX)]
	if pp.Status != models.PlatformFailedTerminal {
		t.Fatalf("status: %s", pp.Status)
	}
	if *pp.ErrorCode != "no_active_connection" {
		t.Fatalf("error code: %s", *pp.ErrorCode)
	}
	if x.callCount() != 0 {
		t.Fatal("adapter must not be called without a connection")
	}
}

func TestRetryPlatformPostSuccessResolvesJob(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX}
	pub := newTestPublisher(st, retries, sink, x)

	claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)
	st.platformPosts[ppID("post-1", models.PlatformX)] = &models.PlatformPost{
		ID: ppID("post-1", models.PlatformX), PostID: "post-1", Platform: models.PlatformX,
		Status: models.PlatformFailedRetryable, Attempts: 1,
	}

	job := models.RetryJob{
		ID: "job-1", PlatformPostID: ppID("post-1", models.PlatformX),
		PostID: "post-1", UserID: "user-1", Platform: models.PlatformX,
		Attempts: 1, MaxAttempts: 3,
	}
	if err := pub.RetryPlatformPost(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformPublished {
		t.Fatalf("status: %s", got)
	}
	if len(retries.resolved) != 1 || retries.resolved[0] != "job-1" {
		t.Fatalf("resolved: %v", retries.resolved)
	}
	if st.posts["post-1"].Status != models.PostPublished {
		t.Fatalf("aggregate: %s", st.posts["post-1"].Status)
	}
}

func TestRetryExhaustionIsTerminal(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX, err: &platform.PublishError{Code: "network_error", Message: "down", Retryable: true}}
	pub := newTestPublisher(st, retries, sink, x)

	claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)
	st.platformPosts[ppID("post-1", models.PlatformX)] = &models.PlatformPost{
		ID: ppID("post-1", models.PlatformX), PostID: "post-1", Platform: models.PlatformX,
		Status: models.PlatformFailedRetryable, Attempts: 2,
	}

	job := models.RetryJob{
		ID: "job-1", PlatformPostID: ppID("post-1", models.PlatformX),
		PostID: "post-1", UserID: "user-1", Platform: models.PlatformX,
		Attempts: 2, MaxAttempts: 3,
	}
	if err := pub.RetryPlatformPost(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	// Third attempt fails retryably but MaxAttempts=3 is reached.
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformFailedTerminal {
		t.Fatalf("status: %s", got)
	}
	if len(retries.rescheduled) != 0 {
		t.Fatalf("must not reschedule after exhaustion: %v", retries.rescheduled)
	}
	if len(retries.resolved) != 1 {
		t.Fatalf("job must be resolved: %v", retries.resolved)
	}
	if !sink.has("platform.retries_exhausted") {
		t.Fatalf("missing exhaustion notification, got %v", sink.events)
	}
}

func TestRetryFailureReschedulesWithinBudget(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX, err: &platform.PublishError{Code: "network_error", Message: "down", Retryable: true}}
	pub := newTestPublisher(st, retries, sink, x)

	claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)
	st.platformPosts[ppID("post-1", models.PlatformX)] = &models.PlatformPost{
		ID: ppID("post-1", models.PlatformX), PostID: "post-1", Platform: models.PlatformX,
		Status: models.PlatformFailedRetryable, Attempts: 1,
	}

	job := models.RetryJob{
		ID: "job-1", PlatformPostID: ppID("post-1", models.PlatformX),
		PostID: "post-1", UserID: "user-1", Platform: models.PlatformX,
		Attempts: 1, MaxAttempts: 3,
	}
	if err := pub.RetryPlatformPost(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := st.status(ppID("post-1", models.PlatformX)); got != models.PlatformFailedRetryable {
		t.Fatalf("status: %s", got)
	}
	if len(retries.rescheduled) != 1 || retries.rescheduled[0] != 2 {
		t.Fatalf("rescheduled: %v", retries.rescheduled)
	}
	if len(retries.resolved) != 0 {
		t.Fatalf("job must stay live: %v", retries.resolved)
	}
}

func TestPartialSuccessAggregate(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	fb := &fakeAdapter{platform: models.PlatformFacebook}
	pin := &fakeAdapter{platform: models.PlatformPinterest, err: &platform.PublishError{Code: "auth_failed", Message: "401", Retryable: false}}
	x := &fakeAdapter{platform: models.PlatformX, err: &platform.PublishError{Code: "network_error", Message: "down", Retryable: true}}
	pub := newTestPublisher(st, retries, sink, fb, pin, x)

	post := claimedPost(st, "post-1", "user-1", models.PlatformFacebook, models.PlatformPinterest, models.PlatformX)
	post.Images = []string{"https://img/1.jpg"}
	st.posts["post-1"].Images = post.Images
	for _, p := range post.Platforms {
		st.addConnection("user-1", p)
	}

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// One success, one terminal failure, one pending retry: the aggregate
	// must stay publishing until the retry resolves.
	if st.posts["post-1"].Status != models.PostPublishing {
		t.Fatalf("aggregate before retry resolution: %s", st.posts["post-1"].Status)
	}

	// The pending retry resolves successfully; the aggregate still fails
	// because one platform failed terminally.
	x.err = nil
	job := models.RetryJob{
		ID: "job-1", PlatformPostID: ppID("post-1", models.PlatformX),
		PostID: "post-1", UserID: "user-1", Platform: models.PlatformX,
		Attempts: 1, MaxAttempts: 3,
	}
	if err := pub.RetryPlatformPost(context.Background(), job); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if st.posts["post-1"].Status != models.PostFailed {
		t.Fatalf("final aggregate: %s", st.posts["post-1"].Status)
	}
}

func TestRateLimiterDeniesAsRetryable(t *testing.T) {
	st := newFakeStore()
	retries := &fakeRetries{}
	sink := &fakeSink{}
	x := &fakeAdapter{platform: models.PlatformX}
	pub := New(st, platform.NewRegistry(x), render.NewPlatformFormatter(), media.PassthroughResolver{}, retries, denyLimiter{}, sink, testConfig(), zerolog.Nop())

	post := claimedPost(st, "post-1", "user-1", models.PlatformX)
	st.addConnection("user-1", models.PlatformX)

	if err := pub.PublishPost(context.Background(), post); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if x.callCount() != 0 {
		t.Fatal("adapter must not be called when rate limited")
	}
	pp := st.platformPosts[ppID("post-1", models.PlatformX)]
	if pp.Status != models.PlatformFailedRetryable || *pp.ErrorCode != "rate_limited" {
		t.Fatalf("status=%s code=%v", pp.Status, pp.ErrorCode)
	}
	if len(retries.scheduled) != 1 {
		t.Fatalf("scheduled: %v", retries.scheduled)
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, models.Platform) (bool, error) { return false, nil }
