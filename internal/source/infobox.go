package source

import (
	"bytes"
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/roster-cli/internal/fetch"
)

// InfoboxSource reads the label/value infobox of a wiki player page.
type InfoboxSource struct {
	name    string
	baseURL string
	fetcher Fetcher
}

// NewInfoboxSource creates an InfoboxSource for pages under baseURL.
func NewInfoboxSource(name, baseURL string, f Fetcher) *InfoboxSource {
	return &InfoboxSource{name: name, baseURL: baseURL, fetcher: f}
}

// Name implements Source.
func (s *InfoboxSource) Name() string { return s.name }

// URL returns the page URL for identity.
func (s *InfoboxSource) URL(identity string) string {
	return joinURL(s.baseURL, pageName(identity))
}

// Lookup implements Source. A page whose infobox has no Nationality row is
// not a player page and yields a shape failure.
func (s *InfoboxSource) Lookup(ctx context.Context, identity string) (*Extraction, error) {
	target := s.URL(identity)
	doc, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}

	cells, err := ParseInfobox(doc.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "infobox: parse %s", target)
	}
	if _, ok := cells["nationality"]; !ok {
		return nil, fetch.ShapeFailure(target, "infobox: no nationality row, not a player page")
	}

	ext := &Extraction{
		Identity: identity,
		Source:   s.name,
		URL:      target,
		Fields:   make(map[string]string),
	}
	for label, key := range infoboxKeys {
		if v, ok := cells[label]; ok {
			ext.Fields[key] = v
		}
	}
	return ext, nil
}

// infoboxKeys maps infobox labels to extraction keys.
var infoboxKeys = map[string]string{
	"team":        KeyTeam,
	"nationality": KeyNationality,
	"born":        KeyBorn,
	"role":        KeyRole,
	"roles":       KeyRole,
	"age":         KeyAge,
}

// ParseInfobox returns the infobox rows of an HTML page keyed by lower-case
// label without its trailing colon. A row is a div with class
// "infobox-cell-2" holding the label, followed by a sibling div holding
// the value.
func ParseInfobox(body []byte) (map[string]string, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "infobox: parse html")
	}

	cells := make(map[string]string)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Div && hasClass(n, "infobox-cell-2") {
			label := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(nodeText(n)), ":"))
			if value := nextDiv(n); value != nil && label != "" {
				if _, seen := cells[label]; !seen {
					cells[label] = strings.Join(strings.Fields(nodeText(value)), " ")
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return cells, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func nextDiv(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			if s.DataAtom == atom.Div {
				return s
			}
			return nil
		}
	}
	return nil
}

// nodeText concatenates the text under n, treating <br> as a space.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte(' ')
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
