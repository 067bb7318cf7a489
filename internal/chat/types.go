// Package chat defines the wire types shared by the dispatch pipeline:
// the inbound chat request with all of its legacy field shapes, and the
// outbound reply envelope.
package chat

import "time"

// Roles recognized in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn. Older clients send the text in a "message"
// field instead of "content"; Text() resolves that.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	// Legacy alias of Content, still sent by old clients.
	Legacy string `json:"message,omitempty"`
}

// Text returns the message content, falling back to the legacy field.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Legacy
}

// Attachment is an uploaded document included with a request.
type Attachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SystemPrompt is one configured system prompt; only the first is used.
type SystemPrompt struct {
	Content string `json:"content"`
}

// Preferences carries per-request model settings. The same shape arrives
// under either the "preferences" key or the legacy "aiConfig" key.
type Preferences struct {
	Model         string         `json:"model,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"maxTokens,omitempty"`
	SystemPrompts []SystemPrompt `json:"systemPrompts,omitempty"`
}

// Request is the inbound dispatch request. Every field is optional; the
// orchestrator rejects a request only when no field resolves to at least one
// non-empty message.
type Request struct {
	Prompt      string       `json:"prompt,omitempty"`
	Message     string       `json:"message,omitempty"`
	Messages    []Message    `json:"messages,omitempty"`
	History     []Message    `json:"history,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	LectureID   string       `json:"lectureId,omitempty"`
	AuthToken   string       `json:"authToken,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
	// AIConfig is the legacy alias of Preferences.
	AIConfig *Preferences `json:"aiConfig,omitempty"`
}

// Prefs normalizes the two preference shapes. aiConfig takes precedence over
// preferences, which is the resolution order deployed clients rely on.
func (r *Request) Prefs() *Preferences {
	if r.AIConfig != nil {
		return r.AIConfig
	}
	return r.Preferences
}

// HasLectureRef reports whether the request references lecture context
// (both the lecture identifier and an auth token must be present).
func (r *Request) HasLectureRef() bool {
	return r.LectureID != "" && r.AuthToken != ""
}

// TokenUsage mirrors the upstream usage block; fields default to zero when
// the backend omits them.
type TokenUsage struct {
	TotalTokens      int `json:"total_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ErrorDetails is diagnostic metadata attached to degraded replies.
type ErrorDetails struct {
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Status    int       `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Reply is the outbound dispatch envelope. Degraded marks replies whose
// Response text is a fallback rather than a real model answer; the transport
// layer decides what status code that maps to (currently 200 either way, so
// the chat UI always has something to render).
type Reply struct {
	Response     string        `json:"response"`
	TokenUsage   TokenUsage    `json:"tokenUsage"`
	IsError      bool          `json:"isError,omitempty"`
	ErrorDetails *ErrorDetails `json:"errorDetails,omitempty"`
}

// Degraded reports whether this reply is a fallback.
func (r *Reply) Degraded() bool {
	return r.IsError
}
