package enrich

import (
	"strings"
	"time"
)

// Fallback is the literal rendered wherever a fact is missing. Every
// template-visible value routes through FormatOrFallback or FormatUKDate
// so raw empties never reach the output text.
const Fallback = "No data available"

// Date layouts accepted from the directory and upstream callers.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// FormatOrFallback returns the trimmed value, or Fallback when empty.
func FormatOrFallback(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return Fallback
	}
	return v
}

// FormatUKDate parses value as a date and renders it DD/MM/YYYY.
// Empty or unparseable input yields Fallback; it never errors.
func FormatUKDate(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return Fallback
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("02/01/2006")
		}
	}
	return Fallback
}
