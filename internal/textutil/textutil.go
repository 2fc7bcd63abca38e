// Package textutil holds the pure text helpers used by the content stores:
// slug generation, reading time estimation and excerpt extraction.
package textutil

import (
	"regexp"
	"strings"
)

const (
	wordsPerMinute       = 200
	DefaultExcerptLength = 160
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
	hyphenRuns       = regexp.MustCompile(`-+`)
	htmlTags         = regexp.MustCompile(`<[^>]*>`)
)

// GenerateSlug derives a URL-safe, lowercase, hyphenated identifier
// from a title. Deterministic and idempotent.
func GenerateSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = whitespaceRuns.ReplaceAllString(slug, "-")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CalculateReadingTime estimates reading time in minutes at 200 words
// per minute, rounded up. Non-empty content always takes at least a minute.
func CalculateReadingTime(content string) int {
	words := len(strings.Fields(content))
	if words == 0 {
		return 0
	}
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// ExtractExcerpt strips HTML tags from content and truncates the plain
// text to maxLength. When the cut would land mid-word, it backs off to
// the last preceding space before appending an ellipsis. Text already
// within the limit is returned unchanged.
func ExtractExcerpt(content string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}

	text := htmlTags.ReplaceAllString(content, "")
	text = strings.Join(strings.Fields(text), " ")

	if len(text) <= maxLength {
		return text
	}

	cut := text[:maxLength]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
