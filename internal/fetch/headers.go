package fetch

import (
	"net/http"
	"sync"
)

// DefaultUserAgents are rotated round-robin across requests.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// HeaderRotator hands out request headers, cycling the user agent.
type HeaderRotator struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewHeaderRotator returns a rotator over agents, or DefaultUserAgents when
// agents is empty.
func NewHeaderRotator(agents []string) *HeaderRotator {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return &HeaderRotator{agents: agents}
}

// Next returns a fresh header set for one request.
func (h *HeaderRotator) Next() http.Header {
	h.mu.Lock()
	ua := h.agents[h.next%len(h.agents)]
	h.next++
	h.mu.Unlock()

	hdr := make(http.Header)
	hdr.Set("User-Agent", ua)
	hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7")
	hdr.Set("Accept-Language", "en-US,en;q=0.9")
	return hdr
}
