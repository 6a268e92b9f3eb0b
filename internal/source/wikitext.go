package source

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/roster-cli/internal/fetch"
)

// WikitextSource reads the player infobox template from a MediaWiki parse
// API response.
type WikitextSource struct {
	name    string
	apiURL  string
	fetcher Fetcher
}

// NewWikitextSource creates a WikitextSource querying apiURL (an api.php
// endpoint).
func NewWikitextSource(name, apiURL string, f Fetcher) *WikitextSource {
	return &WikitextSource{name: name, apiURL: apiURL, fetcher: f}
}

// Name implements Source.
func (s *WikitextSource) Name() string { return s.name }

// URL returns the parse API URL for identity.
func (s *WikitextSource) URL(identity string) string {
	q := url.Values{}
	q.Set("action", "parse")
	q.Set("page", pageName(identity))
	q.Set("prop", "wikitext")
	q.Set("format", "json")
	return s.apiURL + "?" + q.Encode()
}

// wikitextKeys maps template parameters to extraction keys, in preference
// order per key.
var wikitextKeys = []struct {
	param string
	key   string
}{
	{"team", KeyTeam},
	{"country", KeyNationality},
	{"nationality", KeyNationality},
	{"birth_date", KeyBorn},
	{"born", KeyBorn},
	{"roles", KeyRole},
	{"role", KeyRole},
	{"position", KeyRole},
}

// Lookup implements Source.
func (s *WikitextSource) Lookup(ctx context.Context, identity string) (*Extraction, error) {
	target := s.URL(identity)
	doc, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(doc.Body) {
		return nil, fetch.ShapeFailure(target, "wikitext: response is not json")
	}
	if code := gjson.GetBytes(doc.Body, "error.code"); code.Exists() {
		return nil, fetch.ShapeFailure(target, "wikitext: api error %s", code.String())
	}
	text := gjson.GetBytes(doc.Body, `parse.wikitext.\*`)
	if !text.Exists() {
		return nil, fetch.ShapeFailure(target, "wikitext: no parse.wikitext in response")
	}

	params := TemplateParams(text.String(), "infobox player")
	ext := &Extraction{
		Identity: identity,
		Source:   s.name,
		URL:      target,
		Fields:   make(map[string]string),
	}
	for _, m := range wikitextKeys {
		if ext.Has(m.key) {
			continue
		}
		if v := params[m.param]; v != "" {
			ext.Fields[m.key] = v
		}
	}
	if !ext.Has(KeyNationality) {
		return nil, fetch.ShapeFailure(target, "wikitext: no country parameter, not a player page")
	}
	return ext, nil
}

var paramRe = regexp.MustCompile(`^\|\s*([A-Za-z_0-9]+)\s*=\s*(.*)$`)

// TemplateParams returns the "|name=value" parameters of the first template
// whose name matches (case-insensitive), one parameter per line.
func TemplateParams(wikitext, template string) map[string]string {
	params := make(map[string]string)
	lower := strings.ToLower(wikitext)
	start := strings.Index(lower, "{{"+strings.ToLower(template))
	if start < 0 {
		return params
	}
	for _, line := range strings.Split(wikitext[start:], "\n")[1:] {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "}}") {
			break
		}
		m := paramRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		if _, seen := params[name]; !seen {
			params[name] = strings.TrimSpace(m[2])
		}
	}
	return params
}
