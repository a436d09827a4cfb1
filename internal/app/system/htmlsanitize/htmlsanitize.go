// Package htmlsanitize cleans user-supplied rich text before storage or
// display. Request descriptions and decision notes accept limited HTML;
// everything else is treated as plain text.
package htmlsanitize

import (
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// policy allows user-generated-content formatting (paragraphs, lists,
// headings, tables, images over http/https) plus style on table elements.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style").OnElements("table", "thead", "tbody", "tr", "td", "th")
	p.AllowStyles("width", "text-align").OnElements("table", "thead", "tbody", "tr", "td", "th")
	return p
}()

// Sanitize strips unsafe HTML, keeping the allowed formatting subset.
func Sanitize(s string) string {
	return policy.Sanitize(s)
}

// SanitizeToHTML sanitizes and returns template.HTML for direct rendering.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// IsPlainText reports whether the string contains no HTML tags. A "<" is
// only treated as a tag opener when followed by a letter or "/", so prose
// like "5 < 10" stays plain.
func IsPlainText(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '<' || i+1 >= len(s) {
			continue
		}
		c := s[i+1]
		if c == '/' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

// PlainTextToHTML escapes plain text and converts newlines to <br>.
func PlainTextToHTML(s string) string {
	if s == "" {
		return ""
	}
	escaped := html.EscapeString(s)
	return strings.ReplaceAll(escaped, "\n", "<br>")
}

// PrepareForDisplay renders a stored value for HTML output: plain text is
// escaped and wrapped in a paragraph, HTML is sanitized as-is.
func PrepareForDisplay(s string) template.HTML {
	if s == "" {
		return template.HTML("")
	}
	if IsPlainText(s) {
		return template.HTML("<p>" + PlainTextToHTML(s) + "</p>")
	}
	return SanitizeToHTML(s)
}
