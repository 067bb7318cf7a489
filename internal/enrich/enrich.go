// Package enrich fetches lecture-material context for RAG-grounded chat
// requests and folds it into the system prompt.
//
// A missing context is never an error: every failure mode (timeout, non-2xx,
// malformed body, unsuccessful payload) yields nil and the dispatch proceeds
// without enrichment.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beltoedu/dispatchd/internal/chat"
)

// DefaultSystemPrompt is used when the request carries no configured
// system prompts.
const DefaultSystemPrompt = "You are a helpful AI assistant named BELTO. Use previous conversation history to maintain context."

// Context is the payload of the internal chat-context endpoint.
type Context struct {
	Success      bool              `json:"success"`
	LectureID    string            `json:"lectureId"`
	LectureTitle string            `json:"lectureTitle"`
	Attachments  []chat.Attachment `json:"attachments"`
}

// Fetcher retrieves chat context over the internal HTTP API.
type Fetcher struct {
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
	maxDocs  int
	maxChars int
}

// Config holds enrichment bounds.
type Config struct {
	// BaseURL is the dispatchd address used for the self-referential
	// chat-context call.
	BaseURL string
	// MaxDocuments caps how many source documents are folded into the
	// prompt.
	MaxDocuments int
	// MaxCharsPerDoc truncates each document to bound prompt size.
	MaxCharsPerDoc int
}

// NewFetcher creates a context fetcher.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = 3
	}
	if cfg.MaxCharsPerDoc <= 0 {
		cfg.MaxCharsPerDoc = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		client:   &http.Client{},
		logger:   logger.Named("enrich"),
		maxDocs:  cfg.MaxDocuments,
		maxChars: cfg.MaxCharsPerDoc,
	}
}

// FetchContext retrieves material excerpts for a lecture within the given
// timeout. Returns nil when the lecture reference is incomplete or the call
// fails in any way.
func (f *Fetcher) FetchContext(ctx context.Context, lectureID, authToken string, timeout time.Duration) *Context {
	if lectureID == "" || authToken == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/api/v1/chat-context?lectureId=%s", f.baseURL, url.QueryEscape(lectureID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		f.logger.Warn("building chat-context request failed", zap.Error(err))
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Info("chat-context fetch failed, continuing without context",
			zap.String("lecture_id", lectureID),
			zap.Duration("timeout", timeout),
			zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Info("chat-context fetch returned non-OK status",
			zap.String("lecture_id", lectureID),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	var c Context
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		f.logger.Info("chat-context payload malformed", zap.Error(err))
		return nil
	}
	if !c.Success {
		return nil
	}

	f.logger.Debug("chat context fetched",
		zap.String("lecture_id", c.LectureID),
		zap.String("title", c.LectureTitle),
		zap.Int("attachments", len(c.Attachments)))

	return &c
}

// BuildSystemPrompt appends the retrieved material excerpts to the base
// system prompt. Documents beyond MaxDocuments are dropped and each
// document's text is truncated to MaxCharsPerDoc with an explicit marker.
func (f *Fetcher) BuildSystemPrompt(base string, c *Context) string {
	if base == "" {
		base = DefaultSystemPrompt
	}
	if c == nil || len(c.Attachments) == 0 {
		return base
	}

	docs := c.Attachments
	if len(docs) > f.maxDocs {
		docs = docs[:f.maxDocs]
	}

	parts := make([]string, 0, len(docs))
	for _, att := range docs {
		content := att.Content
		if len(content) > f.maxChars {
			content = content[:f.maxChars] + "...[truncated]"
		}
		parts = append(parts, fmt.Sprintf("Document: %s\nContent: %s", att.Name, content))
	}

	var b strings.Builder
	b.WriteString(base)
	fmt.Fprintf(&b, "\n\nYou have access to the following course materials from %q (Lecture ID: %s):\n\n",
		c.LectureTitle, c.LectureID)
	b.WriteString(strings.Join(parts, "\n\n"))
	b.WriteString("\n\nWhen answering questions, prioritize information from these course materials when relevant. " +
		"If your response includes information from these materials, briefly mention which document you're referencing.")
	return b.String()
}
