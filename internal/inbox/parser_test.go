package inbox

import (
	"strings"
	"testing"
)

const plainMessage = "From: Priya Patel <priya.patel@example.com>\r\n" +
	"To: office@example.com\r\n" +
	"Subject: Leak in flat 12\r\n" +
	"Message-Id: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"There is water coming through my ceiling again.\r\n"

const htmlMessage = "From: priya.patel@example.com\r\n" +
	"Subject: EICR question\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><head><style>p{color:red}</style></head>" +
	"<body><p>Could someone let me know when the <b>EICR</b> is due?</p>" +
	"<p>Thanks,<br>Priya</p></body></html>\r\n"

func TestParsePlainText(t *testing.T) {
	email, err := Parse(strings.NewReader(plainMessage))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if email.Subject != "Leak in flat 12" {
		t.Errorf("subject: %q", email.Subject)
	}
	if email.From != "priya.patel@example.com" {
		t.Errorf("from: %q", email.From)
	}
	if email.FromName != "Priya Patel" {
		t.Errorf("from name: %q", email.FromName)
	}
	if email.Body != "There is water coming through my ceiling again." {
		t.Errorf("body: %q", email.Body)
	}
}

func TestParseHTMLOnlyFallsBackToText(t *testing.T) {
	email, err := Parse(strings.NewReader(htmlMessage))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if email.HTMLBody == "" {
		t.Fatal("html part not captured")
	}
	if !strings.Contains(email.Body, "Could someone let me know when the EICR is due?") {
		t.Errorf("html not reduced to text: %q", email.Body)
	}
	if strings.Contains(email.Body, "color:red") {
		t.Errorf("style content leaked into body: %q", email.Body)
	}
	if strings.Contains(email.Body, "<") {
		t.Errorf("tags leaked into body: %q", email.Body)
	}
}

func TestHTMLToTextKeepsLineStructure(t *testing.T) {
	got := HTMLToText("<p>First paragraph</p><p>Second<br>line</p>")
	want := "First paragraph\nSecond\nline"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
