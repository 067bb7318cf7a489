// Package endpoint tracks the health of upstream AI inference backends and
// picks the best candidate for each dispatch attempt.
//
// The registry holds one record per configured backend URL. Records are
// created at process start and never destroyed; a restart resets all health
// history to "available". Health tracking is a heuristic, not a ledger:
// concurrent updates may interleave, and that is acceptable.
package endpoint

import (
	"time"
)

// Endpoint is a point-in-time snapshot of one upstream backend's state.
type Endpoint struct {
	URL                 string
	Available           bool
	FailCount           int
	ConsecutiveFailures int
	LastResponseTime    time.Duration
	LastChecked         time.Time
}

// Status is the wire representation of an endpoint for the status endpoint.
type Status struct {
	URL                 string `json:"url"`
	Status              string `json:"status"` // available or unavailable
	ResponseTimeMs      int64  `json:"responseTimeMs"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
}

// Config holds the registry's health-tracking tunables.
type Config struct {
	// MaxConsecutiveFailures trips an endpoint to unavailable.
	MaxConsecutiveFailures int
	// RetryInterval re-admits an unavailable endpoint once this much time
	// has passed since its last state change (probation / half-open).
	RetryInterval time.Duration
}

// timeNow is swapped out in tests.
var timeNow = time.Now
