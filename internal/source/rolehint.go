package source

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/sells-group/roster-cli/internal/fetch"
)

// RoleHintSource scans a stats page for role keywords. It only ever yields
// a role field.
type RoleHintSource struct {
	name    string
	baseURL string
	fetcher Fetcher
}

// NewRoleHintSource creates a RoleHintSource for pages at baseURL/<identity>.
func NewRoleHintSource(name, baseURL string, f Fetcher) *RoleHintSource {
	return &RoleHintSource{name: name, baseURL: baseURL, fetcher: f}
}

// Name implements Source.
func (s *RoleHintSource) Name() string { return s.name }

// URL returns the stats page URL for identity.
func (s *RoleHintSource) URL(identity string) string {
	return joinURL(s.baseURL, strings.ToLower(pageName(identity)))
}

// Lookup implements Source.
func (s *RoleHintSource) Lookup(ctx context.Context, identity string) (*Extraction, error) {
	target := s.URL(identity)
	doc, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	hint := RoleHint(doc.Body)
	if hint == "" {
		return nil, fetch.ShapeFailure(target, "rolehint: no role keyword")
	}
	return &Extraction{
		Identity: identity,
		Source:   s.name,
		URL:      target,
		Fields:   map[string]string{KeyRole: hint},
	}, nil
}

// hintKeywords is checked in order; the first keyword present decides.
var hintKeywords = []struct {
	words []string
	role  string
}{
	{[]string{"awper", "sniper"}, "AWPer"},
	{[]string{"rifler", "entry", "fragger"}, "Rifler"},
	{[]string{"in-game leader", "igl"}, "Rifler"},
	{[]string{"support"}, "Support"},
	{[]string{"lurker"}, "Lurker"},
	{[]string{"coach"}, "Coach"},
}

// RoleHint returns raw role text suggested by the page, or "". Description
// blocks (class containing description, bio, about or info) are scanned
// before the page as a whole.
func RoleHint(body []byte) string {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var described []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isDescription(n) {
			described = append(described, nodeText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, text := range described {
		if role := keywordRole(text); role != "" {
			return role
		}
	}
	return keywordRole(nodeText(root))
}

func isDescription(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		v := strings.ToLower(a.Val)
		for _, k := range []string{"description", "bio", "about", "info"} {
			if strings.Contains(v, k) {
				return true
			}
		}
	}
	return false
}

func keywordRole(text string) string {
	lower := strings.ToLower(text)
	for _, h := range hintKeywords {
		for _, w := range h.words {
			if strings.Contains(lower, w) {
				return h.role
			}
		}
	}
	return ""
}
