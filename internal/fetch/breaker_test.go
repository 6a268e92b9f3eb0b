package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time { return now }

	var transitions []string
	b.OnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	b.Record(true)
	b.Record(true)
	ok, _ := b.Allow()
	assert.True(t, ok)

	b.Record(true)
	assert.Equal(t, BreakerOpen, b.State())
	ok, wait := b.Allow()
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	now = now.Add(time.Minute)
	ok, _ = b.Allow()
	assert.True(t, ok)
	assert.Equal(t, BreakerHalfOpen, b.State())

	b.Record(false)
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 0, b.Consecutive())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Second)
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	b.Record(true)
	now = now.Add(time.Second)
	ok, _ := b.Allow()
	assert.True(t, ok)

	b.Record(true)
	assert.Equal(t, BreakerOpen, b.State())
	ok, _ = b.Allow()
	assert.False(t, ok)
}

func TestBreaker_SuccessResetsRun(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	b.Record(true)
	b.Record(false)
	b.Record(true)
	assert.Equal(t, BreakerClosed, b.State())
	assert.Equal(t, 1, b.Consecutive())
}

func TestBreaker_Disabled(t *testing.T) {
	b := NewBreaker(0, time.Minute)
	for i := 0; i < 100; i++ {
		b.Record(true)
	}
	ok, _ := b.Allow()
	assert.True(t, ok)
}
