// Package classify assigns a timeout budget and a semantic label to each
// inbound chat request based on its shape.
//
// Generation latency scales with context size and with the extra round-trip
// needed to fetch lecture context, so each category's budget must exceed its
// worst-case processing time or correct requests get spuriously aborted.
package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/beltoedu/dispatchd/internal/chat"
)

// Category labels a request's shape.
type Category string

const (
	Regular           Category = "regular"
	FileSummarization Category = "file_summarization"
	RAGEnhanced       Category = "rag_enhanced"
	LargeContent      Category = "large_content"
)

// Sentinel substrings older clients embed instead of a structured
// attachments list.
const (
	promptAttachmentMarker  = "Attached document content:"
	messageAttachmentMarker = "document content to analyze:"
)

// Classification is the derived timeout policy for one request.
// It is computed fresh per request and never persisted.
type Classification struct {
	Category Category
	// Timeout bounds one upstream dispatch attempt.
	Timeout time.Duration
	// EnrichTimeout bounds the context-fetch sub-call; always shorter
	// than Timeout.
	EnrichTimeout time.Duration
	// Reason is diagnostic only.
	Reason string
}

// Config holds the per-category budgets.
type Config struct {
	BaseTimeout           time.Duration
	FileTimeout           time.Duration
	LargeContentTimeout   time.Duration
	LargeContentThreshold int

	EnrichTimeout      time.Duration
	EnrichFileTimeout  time.Duration
	EnrichLargeTimeout time.Duration
}

// Classifier inspects request shapes. It is pure: no I/O, no failure
// cases. Absent fields are treated as empty, never as errors.
type Classifier struct {
	cfg Config
}

// New creates a classifier, filling unset budgets with the platform defaults.
func New(cfg Config) *Classifier {
	if cfg.BaseTimeout <= 0 {
		cfg.BaseTimeout = 12 * time.Second
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 45 * time.Second
	}
	if cfg.LargeContentTimeout <= 0 {
		cfg.LargeContentTimeout = 30 * time.Second
	}
	if cfg.LargeContentThreshold <= 0 {
		cfg.LargeContentThreshold = 5000
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 5 * time.Second
	}
	if cfg.EnrichFileTimeout <= 0 {
		cfg.EnrichFileTimeout = 10 * time.Second
	}
	if cfg.EnrichLargeTimeout <= 0 {
		cfg.EnrichLargeTimeout = 8 * time.Second
	}
	return &Classifier{cfg: cfg}
}

// Classify assigns the timeout budget for a request. Detection order, first
// match wins: attachments, lecture-context reference, aggregate size, default.
func (c *Classifier) Classify(req *chat.Request) Classification {
	switch {
	case hasAttachments(req):
		return Classification{
			Category:      FileSummarization,
			Timeout:       c.cfg.FileTimeout,
			EnrichTimeout: c.cfg.EnrichFileTimeout,
			Reason:        "request contains file attachments for summarization",
		}

	case req.HasLectureRef():
		return Classification{
			Category:      RAGEnhanced,
			Timeout:       c.cfg.LargeContentTimeout,
			EnrichTimeout: c.cfg.EnrichTimeout,
			Reason:        "request includes lecture material context",
		}

	case totalContentLength(req) > c.cfg.LargeContentThreshold:
		return Classification{
			Category:      LargeContent,
			Timeout:       c.cfg.LargeContentTimeout,
			EnrichTimeout: c.cfg.EnrichLargeTimeout,
			Reason:        fmt.Sprintf("request has large content (%d chars)", totalContentLength(req)),
		}

	default:
		return Classification{
			Category:      Regular,
			Timeout:       c.cfg.BaseTimeout,
			EnrichTimeout: c.cfg.EnrichTimeout,
			Reason:        "standard chat request",
		}
	}
}

// hasAttachments detects attachments in any of the accepted shapes: the
// structured list, or one of the legacy free-text markers.
func hasAttachments(req *chat.Request) bool {
	if len(req.Attachments) > 0 {
		return true
	}
	if strings.Contains(req.Prompt, promptAttachmentMarker) {
		return true
	}
	return strings.Contains(req.Message, messageAttachmentMarker)
}

// totalContentLength sums the character length of every message-bearing
// field on the request.
func totalContentLength(req *chat.Request) int {
	total := len(req.Prompt) + len(req.Message)
	for _, m := range req.Messages {
		total += len(m.Content)
	}
	for _, m := range req.History {
		total += len(m.Content)
	}
	return total
}
