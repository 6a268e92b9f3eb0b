package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// Document is a fetched source document.
type Document struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Strategy    string
	FetchedAt   time.Time
}

// Strategy performs one document fetch. Implementations return a *Failure
// for anything other than a usable document.
type Strategy interface {
	Name() string
	Do(ctx context.Context, target string, header http.Header) (*Document, error)
}

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// HTTPStrategy fetches over net/http and recognizes block pages.
type HTTPStrategy struct {
	client *http.Client
}

// NewHTTPStrategy creates an HTTPStrategy with the given request timeout.
func NewHTTPStrategy(timeout time.Duration) *HTTPStrategy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStrategy{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Name implements Strategy.
func (h *HTTPStrategy) Name() string { return "http" }

// Do implements Strategy.
func (h *HTTPStrategy) Do(ctx context.Context, target string, header http.Header) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Failure{Kind: model.FailureTransport, URL: target, Err: eris.Wrap(err, "fetch: create request")}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Failure{Kind: model.FailureTransport, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &Failure{Kind: model.FailureTransport, URL: target, StatusCode: resp.StatusCode, Err: eris.Wrap(err, "fetch: read body")}
	}

	if block := DetectBlock(resp, body); block != BlockNone {
		return nil, &Failure{Kind: model.FailureBlocked, URL: target, StatusCode: resp.StatusCode, Block: block}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Failure{Kind: model.FailureStatus, URL: target, StatusCode: resp.StatusCode}
	}

	return &Document{
		URL:         target,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Strategy:    h.Name(),
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// FixtureStrategy serves documents from a directory, for offline runs and
// tests. A URL maps to its "page" query parameter when present, else its
// last path segment; the file is looked up as-is, then with .html and .json
// (.json first for API URLs).
type FixtureStrategy struct {
	dir string
}

// NewFixtureStrategy serves files under dir.
func NewFixtureStrategy(dir string) *FixtureStrategy {
	return &FixtureStrategy{dir: dir}
}

// Name implements Strategy.
func (f *FixtureStrategy) Name() string { return "fixture" }

// Do implements Strategy.
func (f *FixtureStrategy) Do(ctx context.Context, target string, _ http.Header) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Failure{Kind: model.FailureTransport, URL: target, Err: err}
	}
	key, err := FixtureKey(target)
	if err != nil {
		return nil, &Failure{Kind: model.FailureTransport, URL: target, Err: err}
	}

	names := []string{key, key + ".html", key + ".json"}
	if strings.Contains(target, "page=") {
		names = []string{key, key + ".json", key + ".html"}
	}
	for _, name := range names {
		p := filepath.Join(f.dir, name)
		body, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &Failure{Kind: model.FailureTransport, URL: target, Err: eris.Wrapf(err, "fetch: read fixture %s", p)}
		}
		ct := "text/html; charset=utf-8"
		if strings.HasSuffix(name, ".json") {
			ct = "application/json"
		}
		return &Document{
			URL:         target,
			StatusCode:  http.StatusOK,
			ContentType: ct,
			Body:        body,
			Strategy:    f.Name(),
			FetchedAt:   time.Now().UTC(),
		}, nil
	}
	return nil, &Failure{Kind: model.FailureStatus, URL: target, StatusCode: http.StatusNotFound}
}

// FixtureKey returns the fixture file stem for a URL.
func FixtureKey(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", eris.Wrap(err, "fetch: parse url")
	}
	key := u.Query().Get("page")
	if key == "" {
		key = path.Base(u.Path)
	}
	key = strings.ReplaceAll(key, " ", "_")
	if key == "" || key == "." || key == "/" || strings.Contains(key, "..") {
		return "", eris.Errorf("fetch: no fixture key in %q", target)
	}
	return filepath.Base(key), nil
}
