// Package dispatch routes chat requests across upstream AI backends with
// health-aware endpoint selection, shape-dependent timeouts, bounded retry,
// and a fallback contract: apart from malformed requests and missing
// credentials, the caller always receives a renderable reply.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/beltoedu/dispatchd/internal/chat"
	"github.com/beltoedu/dispatchd/internal/classify"
	"github.com/beltoedu/dispatchd/internal/endpoint"
	"github.com/beltoedu/dispatchd/internal/enrich"
)

// Config holds orchestrator tunables.
type Config struct {
	// MaxAttempts caps dispatch attempts per request; the effective count
	// is min(MaxAttempts, endpoint count).
	MaxAttempts int
	// RetryBackoff is the fixed wait between attempts.
	RetryBackoff time.Duration

	// Defaults applied when the request carries no preferences.
	DefaultModel       string
	DefaultTemperature float64
	DefaultMaxTokens   int
}

// Orchestrator is the top-level dispatch control flow.
type Orchestrator struct {
	classifier *classify.Classifier
	enricher   *enrich.Fetcher
	registry   *endpoint.Registry
	client     *Client
	cfg        Config
	logger     *zap.Logger
}

// NewOrchestrator wires the dispatch pipeline.
func NewOrchestrator(classifier *classify.Classifier, enricher *enrich.Fetcher, registry *endpoint.Registry, client *Client, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "default-model"
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = 0.7
	}
	if cfg.DefaultMaxTokens == 0 {
		cfg.DefaultMaxTokens = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		enricher:   enricher,
		registry:   registry,
		client:     client,
		cfg:        cfg,
		logger:     logger.Named("dispatch"),
	}
}

// attemptResult carries one successful upstream answer.
type attemptResult struct {
	content string
	usage   chat.TokenUsage
}

// Handle processes one chat request end to end.
//
// It returns an error only for ErrNoValidMessages (malformed request) and
// ErrNotConfigured (missing API key); every backend failure is converted
// into a degraded Reply so the conversation never breaks.
func (o *Orchestrator) Handle(ctx context.Context, req *chat.Request) (*chat.Reply, error) {
	if !o.client.Configured() {
		return nil, ErrNotConfigured
	}

	cls := o.classifier.Classify(req)
	o.logger.Debug("request classified",
		zap.String("category", string(cls.Category)),
		zap.Duration("timeout", cls.Timeout),
		zap.String("reason", cls.Reason))

	msgs := buildMessages(req)
	if len(dropEmpty(append([]chat.Message(nil), msgs...))) == 0 {
		return nil, ErrNoValidMessages
	}

	system := o.systemMessage(ctx, req, cls)
	msgs = dropEmpty(append([]chat.Message{system}, msgs...))

	payload := completionRequest{
		Model:       o.cfg.DefaultModel,
		Messages:    msgs,
		Temperature: o.cfg.DefaultTemperature,
		MaxTokens:   o.cfg.DefaultMaxTokens,
	}
	if prefs := req.Prefs(); prefs != nil {
		if prefs.Model != "" {
			payload.Model = prefs.Model
		}
		if prefs.Temperature != nil {
			payload.Temperature = *prefs.Temperature
		}
		if prefs.MaxTokens > 0 {
			payload.MaxTokens = prefs.MaxTokens
		}
	}

	maxAttempts := o.cfg.MaxAttempts
	if n := o.registry.Len(); n < maxAttempts {
		maxAttempts = n
	}

	requestsTotal.WithLabelValues(string(cls.Category)).Inc()

	result, err := withRetries(ctx, maxAttempts, o.cfg.RetryBackoff, func(ctx context.Context, attempt int) (attemptResult, error) {
		ep := o.registry.Select(time.Now())
		o.logger.Debug("dispatch attempt",
			zap.Int("attempt", attempt),
			zap.String("endpoint", ep.URL))

		start := time.Now()
		content, usage, err := o.client.Complete(ctx, ep.URL, payload, cls.Timeout)
		elapsed := time.Since(start)

		if err != nil {
			o.registry.RecordOutcome(ep.URL, false, 0)
			o.logger.Warn("dispatch attempt failed",
				zap.Int("attempt", attempt),
				zap.String("endpoint", ep.URL),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			return attemptResult{}, err
		}

		o.registry.RecordOutcome(ep.URL, true, elapsed)
		attemptDuration.Observe(elapsed.Seconds())
		return attemptResult{content: content, usage: usage}, nil
	})

	if err != nil {
		f := classifyFailure(err)
		o.logger.Error("all dispatch attempts failed",
			zap.String("category", string(cls.Category)),
			zap.String("failure_code", f.code),
			zap.Error(err))
		repliesTotal.WithLabelValues("degraded").Inc()
		return &chat.Reply{
			Response:     f.fallback,
			TokenUsage:   chat.TokenUsage{},
			IsError:      true,
			ErrorDetails: f.details(),
		}, nil
	}

	repliesTotal.WithLabelValues("ok").Inc()
	return &chat.Reply{
		Response:   result.content,
		TokenUsage: result.usage,
	}, nil
}

// systemMessage builds the (possibly enriched) system message for a request.
func (o *Orchestrator) systemMessage(ctx context.Context, req *chat.Request, cls classify.Classification) chat.Message {
	var base string
	if prefs := req.Prefs(); prefs != nil && len(prefs.SystemPrompts) > 0 {
		base = prefs.SystemPrompts[0].Content
	}

	var lectureCtx *enrich.Context
	if req.HasLectureRef() {
		lectureCtx = o.enricher.FetchContext(ctx, req.LectureID, req.AuthToken, cls.EnrichTimeout)
	}

	return chat.Message{
		Role:    chat.RoleSystem,
		Content: o.enricher.BuildSystemPrompt(base, lectureCtx),
	}
}
