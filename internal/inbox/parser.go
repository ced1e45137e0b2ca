// Package inbox parses raw RFC 822 messages into the subject and
// plain-text body the classifiers work on. HTML-only messages are
// reduced to text. Callers that already hold plain text skip this
// package entirely.
package inbox

import (
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message/mail"
)

// ParsedEmail is the classifier-ready view of an inbound message.
type ParsedEmail struct {
	Subject   string
	From      string
	FromName  string
	Body      string // plain text, derived from HTML when necessary
	HTMLBody  string // original HTML part, when present
	MessageID string
}

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// Parse reads a raw RFC 822 message.
func Parse(r io.Reader) (*ParsedEmail, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}

	email := &ParsedEmail{}
	email.Subject, _ = mr.Header.Subject()
	email.MessageID, _ = mr.Header.MessageID()
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		email.From = addrs[0].Address
		email.FromName = addrs[0].Name
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && email.Body == "" {
				email.Body = strings.TrimSpace(string(body))
			} else if strings.HasPrefix(ct, "text/html") && email.HTMLBody == "" {
				email.HTMLBody = string(body)
			}
		}
	}

	// No plain part: fall back to the HTML reduced to text.
	if email.Body == "" && email.HTMLBody != "" {
		email.Body = HTMLToText(email.HTMLBody)
	}

	return email, nil
}

// HTMLToText reduces an HTML body to readable plain text.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}

	// Drop non-content elements before extracting text.
	doc.Find("style, script, head").Remove()

	// Keep paragraph and line-break structure readable.
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Text()
	text = whitespaceRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
