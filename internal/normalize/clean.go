// Package normalize turns raw extracted strings into canonical player field
// values.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	pipedLinkRe = regexp.MustCompile(`\[\[[^\]|]*\|([^\]]*)\]\]`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// CleanText strips HTML tags and wiki link markup, decodes entities,
// collapses whitespace runs and trims surrounding quotes. A piped wiki link
// keeps its display label.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, "")
	s = pipedLinkRe.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("[[", "", "]]", "").Replace(s)
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
