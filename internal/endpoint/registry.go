package endpoint

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry is the process-wide mutable health state for all configured
// backends. It is constructed once at startup and injected into the
// orchestrator and the health monitor; there are no package-level instances.
type Registry struct {
	mu        sync.Mutex
	endpoints []*record
	cfg       Config
	logger    *zap.Logger
}

// record is the mutable internal form of an Endpoint.
type record struct {
	url                 string
	available           bool
	failCount           int
	consecutiveFailures int
	lastResponseTime    time.Duration
	lastChecked         time.Time
}

// NewRegistry creates a registry with every endpoint available.
func NewRegistry(urls []string, cfg Config, logger *zap.Logger) *Registry {
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 2
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	now := timeNow()
	endpoints := make([]*record, 0, len(urls))
	for _, u := range urls {
		endpoints = append(endpoints, &record{
			url:         u,
			available:   true,
			lastChecked: now,
		})
		availableGauge.WithLabelValues(u).Set(1)
	}

	return &Registry{
		endpoints: endpoints,
		cfg:       cfg,
		logger:    logger.Named("endpoint"),
	}
}

// Len returns the number of configured endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

// List returns a snapshot of all endpoints in configuration order.
func (r *Registry) List() []Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Endpoint, len(r.endpoints))
	for i, e := range r.endpoints {
		out[i] = e.snapshot()
	}
	return out
}

// Find returns a snapshot of the endpoint with the given URL.
func (r *Registry) Find(url string) (Endpoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.find(url); e != nil {
		return e.snapshot(), true
	}
	return Endpoint{}, false
}

// RecordOutcome folds one dispatch or probe result into the endpoint's state.
//
// On success the endpoint becomes available, its consecutive-failure count
// resets, and its fail count decays by one. On failure both counters grow,
// and crossing MaxConsecutiveFailures marks the endpoint unavailable.
//
// An unknown URL is logged and otherwise ignored: outcomes only ever come
// from URLs the registry handed out, so this indicates a caller bug, not a
// condition worth failing a live request over.
func (r *Registry) RecordOutcome(url string, success bool, responseTime time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.find(url)
	if e == nil {
		r.logger.Warn("outcome recorded for unknown endpoint", zap.String("url", url))
		return
	}

	e.lastChecked = timeNow()

	if success {
		e.available = true
		availableGauge.WithLabelValues(e.url).Set(1)
		e.lastResponseTime = responseTime
		e.consecutiveFailures = 0
		if e.failCount > 0 {
			e.failCount--
		}
		outcomesTotal.WithLabelValues("success").Inc()
		return
	}

	e.failCount++
	e.consecutiveFailures++
	outcomesTotal.WithLabelValues("failure").Inc()

	if e.consecutiveFailures >= r.cfg.MaxConsecutiveFailures {
		if e.available {
			r.logger.Warn("marking endpoint unavailable",
				zap.String("url", e.url),
				zap.Int("consecutive_failures", e.consecutiveFailures))
		}
		e.available = false
		availableGauge.WithLabelValues(e.url).Set(0)
	}
}

// Select picks the endpoint for the next dispatch attempt.
//
// Selection and probation re-admission are coupled: any endpoint that has
// been unavailable longer than RetryInterval is re-admitted first, then the
// available set is ordered by fastest last response with a least-recently
// used tie-break. If every endpoint is down the first configured one is
// force-reset so that a caller always gets a candidate.
func (r *Registry) Select(now time.Time) Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.endpoints {
		if !e.available && now.Sub(e.lastChecked) > r.cfg.RetryInterval {
			r.logger.Info("re-admitting endpoint after cooldown", zap.String("url", e.url))
			e.reset()
			readmissionsTotal.Inc()
		}
	}

	available := make([]*record, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if e.available {
			available = append(available, e)
		}
	}

	if len(available) == 0 {
		first := r.endpoints[0]
		r.logger.Warn("all endpoints unavailable, force-resetting first",
			zap.String("url", first.url))
		first.reset()
		readmissionsTotal.Inc()
		selectionsTotal.WithLabelValues(first.url).Inc()
		return first.snapshot()
	}

	sort.SliceStable(available, func(i, j int) bool {
		if available[i].lastResponseTime != available[j].lastResponseTime {
			return available[i].lastResponseTime < available[j].lastResponseTime
		}
		return available[i].lastChecked.Before(available[j].lastChecked)
	})

	selected := available[0]
	selectionsTotal.WithLabelValues(selected.url).Inc()
	return selected.snapshot()
}

// Statuses returns the wire form of every endpoint plus the available count.
func (r *Registry) Statuses() ([]Status, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, len(r.endpoints))
	availableCount := 0
	for i, e := range r.endpoints {
		state := "unavailable"
		if e.available {
			state = "available"
			availableCount++
		}
		statuses[i] = Status{
			URL:                 e.url,
			Status:              state,
			ResponseTimeMs:      e.lastResponseTime.Milliseconds(),
			ConsecutiveFailures: e.consecutiveFailures,
		}
	}
	return statuses, availableCount
}

// StaleSince returns the URLs of endpoints whose last check is older than
// the given threshold. Used by the health monitor to bound probe volume.
func (r *Registry) StaleSince(now time.Time, threshold time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []string
	for _, e := range r.endpoints {
		if now.Sub(e.lastChecked) > threshold {
			stale = append(stale, e.url)
		}
	}
	return stale
}

func (r *Registry) find(url string) *record {
	for _, e := range r.endpoints {
		if e.url == url {
			return e
		}
	}
	return nil
}

func (e *record) reset() {
	e.available = true
	e.failCount = 0
	e.consecutiveFailures = 0
	availableGauge.WithLabelValues(e.url).Set(1)
}

func (e *record) snapshot() Endpoint {
	return Endpoint{
		URL:                 e.url,
		Available:           e.available,
		FailCount:           e.failCount,
		ConsecutiveFailures: e.consecutiveFailures,
		LastResponseTime:    e.lastResponseTime,
		LastChecked:         e.lastChecked,
	}
}
