package formatter

import (
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// TruncateString truncates a string to maxLen characters
// Handles UTF-8 properly by counting runes, not bytes
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	runes := []rune(s)
	return string(runes[:maxLen])
}

// TruncateWithEllipsis truncates a string and adds "..." if truncated
func TruncateWithEllipsis(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	return string(runes[:maxLen-3]) + "..."
}

// FormatStars renders a star count with thousands separators
func FormatStars(n int) string {
	return "★ " + humanize.Comma(int64(n))
}

// FormatRelative renders t relative to now ("3 minutes from now", "2 days ago")
func FormatRelative(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// OrDash returns "-" for empty strings
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
