package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/beltoedu/dispatchd/internal/chat"
)

// completionRequest is the OpenAI-compatible chat completion payload sent to
// every upstream backend.
type completionRequest struct {
	Model       string         `json:"model"`
	Messages    []chat.Message `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens"`
}

// completionResponse is the subset of the upstream response we consume.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *chat.TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client issues chat-completion calls to upstream backends. One client is
// shared across all endpoints; the per-attempt timeout comes from the
// request's classification, not from the HTTP client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientConfig holds upstream client settings.
type ClientConfig struct {
	APIKey            string
	RequestsPerSecond float64
	Burst             int
}

// NewClient creates an upstream completion client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     logger.Named("upstream"),
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Complete sends one completion request to the given endpoint, bounded by
// timeout. It returns the assistant's message content and the usage block
// (zero-filled when the backend omits it).
func (c *Client) Complete(ctx context.Context, endpointURL string, payload completionRequest, timeout time.Duration) (string, chat.TokenUsage, error) {
	var usage chat.TokenUsage

	if err := c.limiter.Wait(ctx); err != nil {
		return "", usage, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", usage, fmt.Errorf("marshaling completion request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(body))
	if err != nil {
		return "", usage, fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", usage, fmt.Errorf("completion call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, fmt.Errorf("reading completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{Status: resp.StatusCode}
		var parsed completionResponse
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			se.Message = parsed.Error.Message
		}
		return "", usage, se
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", usage, fmt.Errorf("decoding completion response: %w", err)
	}

	if parsed.Usage != nil {
		usage = *parsed.Usage
	}

	content := "No response content"
	if len(parsed.Choices) > 0 && parsed.Choices[0].Message.Content != "" {
		content = parsed.Choices[0].Message.Content
	}

	return content, usage, nil
}
