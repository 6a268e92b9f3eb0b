// Package source looks up raw player fields from upstream documents.
package source

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/roster-cli/internal/fetch"
)

// Raw field keys an Extraction may carry.
const (
	KeyTeam        = "team"
	KeyNationality = "nationality"
	KeyBorn        = "born"
	KeyAge         = "age"
	KeyRole        = "role"
)

// Extraction is the raw field text one source found for one identity.
type Extraction struct {
	Identity string
	Source   string
	URL      string
	Fields   map[string]string
}

// Has reports whether key carries non-blank text.
func (e *Extraction) Has(key string) bool {
	return strings.TrimSpace(e.Fields[key]) != ""
}

// Source looks up one identity.
type Source interface {
	Name() string
	Lookup(ctx context.Context, identity string) (*Extraction, error)
}

// Fetcher retrieves documents. *fetch.Scheduler satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (*fetch.Document, error)
}

// pageName turns an identity into a wiki page title segment.
func pageName(identity string) string {
	return strings.ReplaceAll(strings.TrimSpace(identity), " ", "_")
}

func joinURL(base, segment string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(segment)
}
