package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"social-publisher/internal/models"
)

// Content is the rendered, platform-ready form of a post produced by the
// content formatter, with image references already resolved to fetchable URLs.
type Content struct {
	Text      string
	ImageURLs []string
	Hashtags  []string
}

// PublishResult is a successful platform publish.
type PublishResult struct {
	ExternalID string
}

// PublishError is the typed failure an adapter reports. Retryable covers
// transient conditions (network, timeout, rate limit, 5xx); everything else
// requires external intervention and must not be retried automatically.
type PublishError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Adapter publishes one rendered post to one platform account. Adapters never
// retry; retry policy lives in the retry queue.
type Adapter interface {
	Platform() models.Platform
	Publish(ctx context.Context, content Content, conn models.PlatformConnection) (PublishResult, error)
}

// Registry looks adapters up by platform.
type Registry struct {
	adapters map[models.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Platform()] = a
	}
	return r
}

// Lookup returns the adapter for a platform.
func (r *Registry) Lookup(p models.Platform) (Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// NewDefaultRegistry wires the four supported platforms onto a shared HTTP
// client. The client timeout bounds every platform API call.
func NewDefaultRegistry(timeout time.Duration) *Registry {
	client := &http.Client{Timeout: timeout}
	return NewRegistry(
		NewFacebookAdapter(client),
		NewInstagramAdapter(client),
		NewPinterestAdapter(client),
		NewXAdapter(client),
	)
}

// Error codes shared by the adapters.
const (
	codeNetwork         = "network_error"
	codeTimeout         = "timeout"
	codeRateLimited     = "rate_limited"
	codeServerError     = "platform_server_error"
	codeAuthFailed      = "auth_failed"
	codePermission      = "permission_denied"
	codeContentRejected = "content_rejected"
	codeNoImage         = "image_required"
	codeBadResponse     = "bad_response"
)

// transportError converts a failed round trip into a retryable PublishError.
// Context deadline expiry counts as a timeout.
func transportError(err error) *PublishError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &PublishError{Code: codeTimeout, Message: err.Error(), Retryable: true}
	}
	return &PublishError{Code: codeNetwork, Message: err.Error(), Retryable: true}
}

// statusError classifies a non-2xx platform response. Rate limiting and
// server-side errors are retryable; auth, permission and content rejections
// are terminal.
func statusError(status int, body []byte) *PublishError {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &PublishError{Code: codeRateLimited, Message: msg, Retryable: true}
	case status >= 500:
		return &PublishError{Code: codeServerError, Message: fmt.Sprintf("status %d: %s", status, msg), Retryable: true}
	case status == http.StatusUnauthorized:
		return &PublishError{Code: codeAuthFailed, Message: msg, Retryable: false}
	case status == http.StatusForbidden:
		return &PublishError{Code: codePermission, Message: msg, Retryable: false}
	default:
		return &PublishError{Code: codeContentRejected, Message: fmt.Sprintf("status %d: %s", status, msg), Retryable: false}
	}
}

// postJSON sends a JSON request and decodes a JSON response into out, running
// the shared transport and status classification.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &PublishError{Code: codeBadResponse, Message: fmt.Sprintf("marshal request: %v", err), Retryable: false}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &PublishError{Code: codeBadResponse, Message: fmt.Sprintf("build request: %v", err), Retryable: false}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &PublishError{Code: codeBadResponse, Message: fmt.Sprintf("decode response: %v", err), Retryable: false}
		}
	}
	return nil
}
