// Package textutil holds small helpers for presenting stored catalog text.
package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var bodyHTMLPolicy = newBodyHTMLPolicy()

// BodyHTML renders plain text as HTML paragraphs. Blank lines separate paragraphs,
// single line breaks become <br>, and every character of s is escaped.
func BodyHTML(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, paragraph := range strings.Split(s, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		lines := strings.Split(paragraph, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(line))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return bodyHTMLPolicy.Sanitize(b.String())
}

// Clip shortens s to at most n runes, appending an ellipsis when it cut anything.
func Clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

func newBodyHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.NewPolicy()
	policy.AllowElements("p", "br")
	return policy
}
