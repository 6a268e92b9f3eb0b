// Package fetch issues paced, classified HTTP requests for source documents.
package fetch

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// Failure is a classified fetch failure. Every error returned by a Strategy
// or the Scheduler for a request that reached the network is a *Failure.
type Failure struct {
	Kind       model.FailureKind
	URL        string
	StatusCode int
	Block      BlockType
	Err        error
}

func (f *Failure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch: %s failure", f.Kind)
	if f.URL != "" {
		fmt.Fprintf(&b, " for %s", f.URL)
	}
	if f.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", f.StatusCode)
	}
	if f.Block != BlockNone {
		fmt.Fprintf(&b, " (%s)", f.Block)
	}
	if f.Err != nil {
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Transient reports whether repeating the same request might succeed.
func (f *Failure) Transient() bool {
	switch f.Kind {
	case model.FailureTransport:
		return isTransientNetErr(f.Err)
	case model.FailureStatus:
		return IsTransientStatus(f.StatusCode)
	default:
		return false
	}
}

// AsFailure extracts a *Failure from err's chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind of err, or transport for errors that were
// never classified.
func KindOf(err error) model.FailureKind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return model.FailureTransport
}

// ShapeFailure reports a document that was fetched but lacks the expected
// fields.
func ShapeFailure(url, format string, args ...any) *Failure {
	return &Failure{Kind: model.FailureShape, URL: url, Err: eris.Errorf(format, args...)}
}

// IsTransientStatus reports whether an HTTP status is worth repeating.
func IsTransientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

func isTransientNetErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
