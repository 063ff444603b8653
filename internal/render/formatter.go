package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"social-publisher/internal/models"
	"social-publisher/internal/platform"
)

// Formatter produces the platform-ready rendering of a post. Implementations
// must be pure: the publisher assumes rendering has no side effects.
type Formatter interface {
	Render(post models.Post, target models.Platform) (platform.Content, error)
}

// Character budgets per platform. X's hard cap is the binding one; the others
// are practical limits under which engagement does not fall off a cliff.
var textLimits = map[models.Platform]int{
	models.PlatformFacebook:  5000,
	models.PlatformInstagram: 2200,
	models.PlatformPinterest: 500,
	models.PlatformX:         280,
}

// Maximum images a single publish call can carry per platform.
var imageLimits = map[models.Platform]int{
	models.PlatformFacebook:  1,
	models.PlatformInstagram: 1,
	models.PlatformPinterest: 1,
	models.PlatformX:         1,
}

// PlatformFormatter is the default formatter: it folds hashtags into the
// budget, trims text to the platform limit, and caps the image count.
type PlatformFormatter struct{}

func NewPlatformFormatter() *PlatformFormatter {
	return &PlatformFormatter{}
}

func (f *PlatformFormatter) Render(post models.Post, target models.Platform) (platform.Content, error) {
	limit, ok := textLimits[target]
	if !ok {
		return platform.Content{}, fmt.Errorf("no formatting rules for platform %q", target)
	}

	hashtags := normalizeHashtags(post.Hashtags)
	text := strings.TrimSpace(post.Content)

	// Hashtags travel separately so adapters can place them, but they share
	// the text budget on X; drop tags before truncating the message itself.
	if target == models.PlatformX {
		for len(hashtags) > 0 && utf8.RuneCountInString(text)+tagLength(hashtags) > limit {
			hashtags = hashtags[:len(hashtags)-1]
		}
		limit -= tagLength(hashtags)
	}
	text = truncate(text, limit)

	images := post.Images
	if max := imageLimits[target]; len(images) > max {
		images = images[:max]
	}

	return platform.Content{
		Text:      text,
		ImageURLs: images,
		Hashtags:  hashtags,
	}, nil
}

// normalizeHashtags guarantees each tag carries a single leading #.
func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, "#"+strings.TrimLeft(tag, "#"))
	}
	return out
}

// tagLength is the rune cost of appending the tags on their own line.
func tagLength(tags []string) int {
	if len(tags) == 0 {
		return 0
	}
	n := 1 // separating newline
	for i, t := range tags {
		if i > 0 {
			n++
		}
		n += utf8.RuneCountInString(t)
	}
	return n
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
