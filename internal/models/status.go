package models

// PostStatus enumerates aggregate post lifecycle states persisted in Postgres.
type PostStatus string

const (
	PostDraft      PostStatus = "draft"
	PostScheduled  PostStatus = "scheduled"
	PostPublishing PostStatus = "publishing"
	PostPublished  PostStatus = "published"
	PostFailed     PostStatus = "failed"
	PostCancelled  PostStatus = "cancelled"
)

// PlatformPostStatus enumerates per-platform publish attempt states.
type PlatformPostStatus string

const (
	PlatformPending         PlatformPostStatus = "pending"
	PlatformPublishing      PlatformPostStatus = "publishing"
	PlatformPublished       PlatformPostStatus = "published"
	PlatformFailedRetryable PlatformPostStatus = "failed_retryable"
	PlatformFailedTerminal  PlatformPostStatus = "failed_terminal"
)

// Terminal reports whether the status is a final outcome for the attempt unit.
func (s PlatformPostStatus) Terminal() bool {
	return s == PlatformPublished || s == PlatformFailedTerminal
}

// RetryJobStatus enumerates live retry job states. Resolved jobs are deleted,
// so only live states exist as rows.
type RetryJobStatus string

const (
	RetryPending  RetryJobStatus = "pending"
	RetryInFlight RetryJobStatus = "in_flight"
)

// Platform enumerates supported social networks.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformPinterest Platform = "pinterest"
	PlatformX         Platform = "x"
)

// KnownPlatform reports whether p names a supported network.
func KnownPlatform(p Platform) bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformPinterest, PlatformX:
		return true
	}
	return false
}

// PostSource enumerates where a post was created from.
type PostSource string

const (
	SourceManual   PostSource = "manual"
	SourceBlogger  PostSource = "blogger"
	SourceSoloboss PostSource = "soloboss"
)

// DerivePostStatus computes the aggregate post status from its platform post
// statuses. The aggregate stays publishing while any platform attempt is
// pending, in flight, or awaiting retry. Once every platform has resolved, the
// post is published only if all platforms published; a single terminal failure
// makes the aggregate failed even when other platforms succeeded.
func DerivePostStatus(statuses []PlatformPostStatus) PostStatus {
	if len(statuses) == 0 {
		return PostPublishing
	}
	allPublished := true
	anyTerminalFailure := false
	for _, s := range statuses {
		switch s {
		case PlatformPending, PlatformPublishing, PlatformFailedRetryable:
			return PostPublishing
		case PlatformFailedTerminal:
			anyTerminalFailure = true
			allPublished = false
		case PlatformPublished:
		default:
			allPublished = false
		}
	}
	if anyTerminalFailure {
		return PostFailed
	}
	if allPublished {
		return PostPublished
	}
	return PostPublishing
}
