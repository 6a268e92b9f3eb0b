package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
)

func testConfig() Config {
	return Config{
		MinDelay:             time.Millisecond,
		DelayIncrement:       time.Millisecond,
		MaxDelay:             2 * time.Millisecond,
		BackoffEvery:         50,
		Retry:                RetryPolicy{MaxAttempts: 1},
		MaxConsecutiveErrors: 10,
		ErrorCooldown:        time.Minute,
	}
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// stubStrategy replays a scripted sequence of outcomes.
type stubStrategy struct {
	calls   int
	results []error
	headers []http.Header
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) Do(_ context.Context, target string, header http.Header) (*Document, error) {
	i := s.calls
	s.calls++
	s.headers = append(s.headers, header)
	if i < len(s.results) && s.results[i] != nil {
		return nil, s.results[i]
	}
	return &Document{URL: target, StatusCode: 200, Body: []byte("ok"), Strategy: s.Name()}, nil
}

func TestScheduler_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>player page content</body></html>"))
	}))
	defer srv.Close()

	s := New(NewHTTPStrategy(time.Second), testConfig())
	doc, err := s.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "player page")
	assert.Equal(t, 1, s.Pacer().Requests())
}

func TestScheduler_NoInPassRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(NewHTTPStrategy(time.Second), testConfig())
	_, err := s.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, model.FailureStatus, KindOf(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestScheduler_BoundedRetryOnTransient(t *testing.T) {
	stub := &stubStrategy{results: []error{
		&Failure{Kind: model.FailureStatus, StatusCode: 503},
		&Failure{Kind: model.FailureStatus, StatusCode: 429},
	}}
	cfg := testConfig()
	cfg.Retry = RetryPolicy{MaxAttempts: 3}
	s := New(stub, cfg)
	s.sleep = noSleep

	doc, err := s.Fetch(context.Background(), "https://example.test/p")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(doc.Body))
	assert.Equal(t, 3, stub.calls)
}

func TestScheduler_NoRetryOnPermanent(t *testing.T) {
	stub := &stubStrategy{results: []error{
		&Failure{Kind: model.FailureStatus, StatusCode: 404},
	}}
	cfg := testConfig()
	cfg.Retry = RetryPolicy{MaxAttempts: 3}
	s := New(stub, cfg)
	s.sleep = noSleep

	_, err := s.Fetch(context.Background(), "https://example.test/p")
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
}

func TestScheduler_UnclassifiedErrorBecomesTransportFailure(t *testing.T) {
	stub := &stubStrategy{results: []error{errors.New("boom")}}
	s := New(stub, testConfig())

	_, err := s.Fetch(context.Background(), "https://example.test/p")
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, model.FailureTransport, f.Kind)
	assert.Equal(t, "https://example.test/p", f.URL)
}

func TestScheduler_RotatesUserAgents(t *testing.T) {
	stub := &stubStrategy{}
	cfg := testConfig()
	cfg.UserAgents = []string{"a", "b"}
	s := New(stub, cfg)

	for i := 0; i < 3; i++ {
		_, err := s.Fetch(context.Background(), "https://example.test/p")
		require.NoError(t, err)
	}
	require.Len(t, stub.headers, 3)
	assert.Equal(t, "a", stub.headers[0].Get("User-Agent"))
	assert.Equal(t, "b", stub.headers[1].Get("User-Agent"))
	assert.Equal(t, "a", stub.headers[2].Get("User-Agent"))
	assert.NotEmpty(t, stub.headers[0].Get("Accept-Language"))
}

func TestScheduler_BreakerRejects(t *testing.T) {
	fail := &Failure{Kind: model.FailureTransport, Err: errors.New("connection refused")}
	stub := &stubStrategy{results: []error{fail, fail}}
	cfg := testConfig()
	cfg.MaxConsecutiveErrors = 2
	cfg.RejectWhenOpen = true
	s := New(stub, cfg)

	for i := 0; i < 2; i++ {
		_, err := s.Fetch(context.Background(), "https://example.test/p")
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, s.Breaker().State())

	_, err := s.Fetch(context.Background(), "https://example.test/p")
	assert.Equal(t, model.FailureCircuitOpen, KindOf(err))
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 2, stub.calls)
}

func TestScheduler_BreakerCoolsDown(t *testing.T) {
	fail := &Failure{Kind: model.FailureBlocked, Block: BlockCaptcha}
	stub := &stubStrategy{results: []error{fail, fail}}
	cfg := testConfig()
	cfg.MaxConsecutiveErrors = 2
	s := New(stub, cfg)

	var slept time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}

	for i := 0; i < 2; i++ {
		_, _ = s.Fetch(context.Background(), "https://example.test/p")
	}
	doc, err := s.Fetch(context.Background(), "https://example.test/p")
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Greater(t, slept, time.Duration(0))
	assert.Equal(t, 3, stub.calls)
}

func TestScheduler_NotFoundDoesNotTripBreaker(t *testing.T) {
	nf := &Failure{Kind: model.FailureStatus, StatusCode: 404}
	stub := &stubStrategy{results: []error{nf, nf, nf}}
	cfg := testConfig()
	cfg.MaxConsecutiveErrors = 2
	cfg.RejectWhenOpen = true
	s := New(stub, cfg)

	for i := 0; i < 3; i++ {
		_, _ = s.Fetch(context.Background(), "https://example.test/p")
	}
	assert.Equal(t, BreakerClosed, s.Breaker().State())
}

func TestScheduler_CancelledContext(t *testing.T) {
	s := New(&stubStrategy{}, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, "https://example.test/p")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	_, isFailure := AsFailure(err)
	assert.False(t, isFailure)
}
