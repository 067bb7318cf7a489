package endpoint

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Prober issues one lightweight connectivity check against a backend.
type Prober interface {
	Probe(ctx context.Context, url string) (time.Duration, error)
}

// HTTPProber probes with a HEAD request against the backend's base path.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with the given per-probe timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPProber{client: &http.Client{Timeout: timeout}}
}

// Probe issues a HEAD request and returns the round-trip time.
// The completions path is stripped so the probe hits the service root
// rather than triggering a generation.
func (p *HTTPProber) Probe(ctx context.Context, url string) (time.Duration, error) {
	probeURL := strings.TrimSuffix(url, "/chat/completions")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, probeURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := timeNow()
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	// Any HTTP response counts as reachable; the probe tests connectivity,
	// not correctness.
	return timeNow().Sub(start), nil
}

// Monitor periodically probes stale endpoints and folds the results into the
// registry. It runs independently of request dispatch and never surfaces an
// error to anyone: probe failures become failure outcomes, nothing more.
type Monitor struct {
	registry  *Registry
	prober    Prober
	threshold time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor creates a health monitor. Endpoints whose last check is older
// than threshold are probed; the tick period is threshold/2 so staleness is
// detected promptly without redundant probes. Overlapping ticks are safe
// because a probed endpoint's lastChecked moves forward immediately.
func NewMonitor(registry *Registry, prober Prober, threshold time.Duration, logger *zap.Logger) *Monitor {
	if threshold <= 0 {
		threshold = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		registry:  registry,
		prober:    prober,
		threshold: threshold,
		logger:    logger.Named("health"),
		done:      make(chan struct{}),
	}
}

// Start launches the background probe loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.threshold / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkStale(ctx)
			}
		}
	}()
}

// Stop shuts the monitor down and waits for the loop to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
}

// checkStale probes every endpoint that has not been checked recently.
func (m *Monitor) checkStale(ctx context.Context) {
	stale := m.registry.StaleSince(timeNow(), m.threshold)
	if len(stale) == 0 {
		return
	}

	m.logger.Debug("probing stale endpoints", zap.Int("count", len(stale)))

	for _, url := range stale {
		rtt, err := m.prober.Probe(ctx, url)
		if err != nil {
			m.logger.Info("health probe failed",
				zap.String("url", url),
				zap.Error(err))
			m.registry.RecordOutcome(url, false, 0)
			continue
		}

		probeDuration.Observe(rtt.Seconds())
		m.logger.Debug("health probe ok",
			zap.String("url", url),
			zap.Duration("rtt", rtt))
		m.registry.RecordOutcome(url, true, rtt)
	}
}
