package enrich

import "testing"

func TestFormatOrFallback(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", Fallback},
		{"   ", Fallback},
		{"FRA-2024-011", "FRA-2024-011"},
		{"  trimmed  ", "trimmed"},
	}
	for _, tt := range tests {
		if got := FormatOrFallback(tt.in); got != tt.want {
			t.Errorf("FormatOrFallback(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatUKDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-15", "15/03/2024"},
		{"2024-03-15T10:30:00Z", "15/03/2024"},
		{"2024-03-15T10:30:00", "15/03/2024"},
		{"15/03/2024", "15/03/2024"},
		{"", Fallback},
		{"not a date", Fallback},
		{"2024-13-45", Fallback},
	}
	for _, tt := range tests {
		if got := FormatUKDate(tt.in); got != tt.want {
			t.Errorf("FormatUKDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
