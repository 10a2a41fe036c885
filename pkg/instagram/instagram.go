package instagram

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reelIDPattern   = regexp.MustCompile(`/(?:p|reel)/([A-Za-z0-9_-]+)`)
	usernamePattern = regexp.MustCompile(`instagram\.com/@?([A-Za-z0-9_.]+)`)
	relAgePattern   = regexp.MustCompile(`(?i)(\d+)\s*(second|minute|hour|day|week|month|year)s?\s*ago`)
)

// reserved path segments that look like usernames but are not.
var reservedSegments = map[string]bool{
	"p": true, "reel": true, "reels": true, "tv": true,
	"explore": true, "stories": true, "accounts": true,
}

// ExtractReelID pulls the shortcode out of a post or reel URL. When
// no shortcode is present it mints a unique fallback of the form
// "unknown_<unix-nanos>" so the link still gets a row; fallback IDs
// are never used for deduplication.
func ExtractReelID(link string) string {
	if m := reelIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return fmt.Sprintf("unknown_%d", time.Now().UnixNano())
}

// ExtractUsername pulls the profile handle out of an instagram URL
// and normalizes it to a single leading "@". Returns "" when the URL
// carries no usable handle.
func ExtractUsername(link string) string {
	m := usernamePattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	handle := strings.TrimLeft(m[1], "@")
	if handle == "" || reservedSegments[strings.ToLower(handle)] {
		return ""
	}
	return "@" + handle
}

// CleanURL strips query string and fragment and ensures a trailing
// slash, so the same reel always yields the same link text.
func CleanURL(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	if link != "" && !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return link
}

// ParseRelativeAge converts phrases like "3 days ago" into an
// approximate age. ok is false when the text carries no recognizable
// age. "just now" and "today" map to zero.
func ParseRelativeAge(text string) (age time.Duration, ok bool) {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return 0, false
	}
	if norm == "just now" || norm == "now" || norm == "today" {
		return 0, true
	}
	if norm == "yesterday" {
		return 24 * time.Hour, true
	}

	m := relAgePattern.FindStringSubmatch(norm)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}

	var unit time.Duration
	switch m[2] {
	case "second":
		unit = time.Second
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = 24 * time.Hour
	case "week":
		unit = 7 * 24 * time.Hour
	case "month":
		unit = 30 * 24 * time.Hour
	case "year":
		unit = 365 * 24 * time.Hour
	}
	return time.Duration(n) * unit, true
}

// DatePolicy decides how unresolvable post ages are treated.
type DatePolicy int

const (
	// Permissive keeps posts whose age cannot be determined.
	Permissive DatePolicy = iota
	// Strict drops posts whose age cannot be determined.
	Strict
)

// WithinDays reports whether a post described by ageText falls inside
// the trailing window of maxDays. maxDays <= 0 disables filtering.
// An RFC-3339 timestamp is authoritative; relative phrases are a
// heuristic fallback, and only a fully unreadable age defers to the
// policy.
func WithinDays(ageText string, maxDays int, policy DatePolicy) bool {
	if maxDays <= 0 {
		return true
	}
	cutoff := time.Duration(maxDays) * 24 * time.Hour
	if posted, err := time.Parse(time.RFC3339, strings.TrimSpace(ageText)); err == nil {
		return time.Since(posted) <= cutoff
	}
	age, ok := ParseRelativeAge(ageText)
	if !ok {
		return policy == Permissive
	}
	return age <= cutoff
}
