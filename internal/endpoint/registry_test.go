package endpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testURLs = []string{
	"http://gpu-a:8000/chat/completions",
	"http://gpu-b:8000/chat/completions",
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(testURLs, Config{
		MaxConsecutiveFailures: 2,
		RetryInterval:          15 * time.Second,
	}, zap.NewNop())
}

func TestNewRegistry(t *testing.T) {
	t.Run("all endpoints start available", func(t *testing.T) {
		r := newTestRegistry(t)

		assert.Equal(t, 2, r.Len())
		for _, e := range r.List() {
			assert.True(t, e.Available)
			assert.Zero(t, e.ConsecutiveFailures)
		}
	})

	t.Run("applies defaults for zero config", func(t *testing.T) {
		r := NewRegistry(testURLs, Config{}, nil)

		assert.Equal(t, 2, r.cfg.MaxConsecutiveFailures)
		assert.Equal(t, 15*time.Second, r.cfg.RetryInterval)
	})
}

func TestRecordOutcome(t *testing.T) {
	t.Run("single failure keeps endpoint available", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], false, 0)

		e, ok := r.Find(testURLs[0])
		require.True(t, ok)
		assert.True(t, e.Available)
		assert.Equal(t, 1, e.ConsecutiveFailures)
		assert.Equal(t, 1, e.FailCount)
	})

	t.Run("consecutive failures trip the endpoint", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[0], false, 0)

		e, ok := r.Find(testURLs[0])
		require.True(t, ok)
		assert.False(t, e.Available)
		assert.Equal(t, 2, e.ConsecutiveFailures)
	})

	t.Run("success resets consecutive failures and decays fail count", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[0], true, 120*time.Millisecond)

		e, ok := r.Find(testURLs[0])
		require.True(t, ok)
		assert.True(t, e.Available)
		assert.Zero(t, e.ConsecutiveFailures)
		assert.Zero(t, e.FailCount)
		assert.Equal(t, 120*time.Millisecond, e.LastResponseTime)
	})

	t.Run("success revives a tripped endpoint", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[0], true, 50*time.Millisecond)

		e, ok := r.Find(testURLs[0])
		require.True(t, ok)
		assert.True(t, e.Available)
	})

	t.Run("unknown URL is ignored", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome("http://nowhere:1234/chat/completions", false, 0)

		_, availableCount := r.Statuses()
		assert.Equal(t, 2, availableCount)
	})
}

func TestSelect(t *testing.T) {
	now := time.Now()

	t.Run("prefers fastest last response time", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], true, 500*time.Millisecond)
		r.RecordOutcome(testURLs[1], true, 100*time.Millisecond)

		selected := r.Select(now)
		assert.Equal(t, testURLs[1], selected.URL)
	})

	t.Run("skips unavailable endpoints", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], true, 100*time.Millisecond)
		r.RecordOutcome(testURLs[1], true, 500*time.Millisecond)
		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[0], false, 0)

		selected := r.Select(now)
		assert.Equal(t, testURLs[1], selected.URL)
	})

	t.Run("re-admits endpoint after cooldown", func(t *testing.T) {
		r := newTestRegistry(t)

		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[0], false, 0)
		r.RecordOutcome(testURLs[1], true, 900*time.Millisecond)

		// Before the cooldown the tripped endpoint stays out.
		selected := r.Select(now)
		assert.Equal(t, testURLs[1], selected.URL)

		// After the cooldown it comes back with a clean slate, and its
		// zero response time wins selection.
		selected = r.Select(now.Add(16 * time.Second))
		assert.Equal(t, testURLs[0], selected.URL)

		e, ok := r.Find(testURLs[0])
		require.True(t, ok)
		assert.True(t, e.Available)
		assert.Zero(t, e.ConsecutiveFailures)
	})

	t.Run("force-resets first endpoint when all are down", func(t *testing.T) {
		r := newTestRegistry(t)

		for _, url := range testURLs {
			r.RecordOutcome(url, false, 0)
			r.RecordOutcome(url, false, 0)
		}

		selected := r.Select(now)
		assert.Equal(t, testURLs[0], selected.URL)
		assert.True(t, selected.Available)
	})
}

func TestStatuses(t *testing.T) {
	r := newTestRegistry(t)

	r.RecordOutcome(testURLs[0], true, 250*time.Millisecond)
	r.RecordOutcome(testURLs[1], false, 0)
	r.RecordOutcome(testURLs[1], false, 0)

	statuses, availableCount := r.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, 1, availableCount)

	assert.Equal(t, "available", statuses[0].Status)
	assert.Equal(t, int64(250), statuses[0].ResponseTimeMs)
	assert.Equal(t, "unavailable", statuses[1].Status)
	assert.Equal(t, 2, statuses[1].ConsecutiveFailures)
}

func TestStaleSince(t *testing.T) {
	base := time.Now()
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	r := newTestRegistry(t)

	assert.Empty(t, r.StaleSince(base, time.Minute))

	stale := r.StaleSince(base.Add(2*time.Minute), time.Minute)
	assert.ElementsMatch(t, testURLs, stale)

	// A fresh outcome moves the endpoint's last-checked time forward.
	timeNow = func() time.Time { return base.Add(90 * time.Second) }
	r.RecordOutcome(testURLs[0], true, 10*time.Millisecond)

	stale = r.StaleSince(base.Add(2*time.Minute), time.Minute)
	assert.Equal(t, []string{testURLs[1]}, stale)
}
