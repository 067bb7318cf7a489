package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/beltoedu/dispatchd/internal/chat"
)

// ErrNoValidMessages signals a malformed request: nothing in the body
// resolved to a non-empty user or assistant message. This is the one failure
// the transport layer surfaces as a real client error.
var ErrNoValidMessages = errors.New("no valid messages with content provided")

// ErrNotConfigured signals a missing upstream API key; surfaced as a server
// configuration error rather than masked.
var ErrNotConfigured = errors.New("upstream API key is not configured")

// StatusError is an upstream HTTP error response.
type StatusError struct {
	Status int
	// Message is the backend-provided error message, when parseable.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}

// failure is the classified terminal error for one request, carrying both
// the operator-facing message and the user-facing fallback text.
type failure struct {
	status   int
	code     string
	message  string
	fallback string
}

const transportFallback = "I apologize, but I'm currently experiencing connectivity issues. " +
	"The AI service is taking longer than expected to respond. Please try sending your message again in a moment."

// classifyFailure maps a terminal dispatch error onto the fallback taxonomy.
func classifyFailure(err error) failure {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == http.StatusUnauthorized:
			return failure{
				status:   se.Status,
				code:     "upstream_auth",
				message:  "Authentication issue with AI service.",
				fallback: "I'm experiencing authentication issues. Please contact support if this continues.",
			}
		case se.Status == http.StatusBadRequest:
			return failure{
				status:   se.Status,
				code:     "upstream_bad_request",
				message:  "Invalid request format.",
				fallback: "I had trouble understanding your request. Could you please rephrase it?",
			}
		case se.Status == http.StatusTooManyRequests:
			return failure{
				status:   se.Status,
				code:     "rate_limited",
				message:  "AI service rate limit exceeded.",
				fallback: "I'm currently handling many requests. Please wait a moment and try again.",
			}
		case se.Status == http.StatusGatewayTimeout:
			return failure{
				status:   se.Status,
				code:     "gateway_timeout",
				message:  "AI service gateway timeout. The request took too long to process.",
				fallback: "Your request is taking longer than expected to process. This might be due to high server load. " +
					"Please try again with a shorter message or wait a moment before retrying.",
			}
		case se.Status >= http.StatusInternalServerError:
			return failure{
				status:   se.Status,
				code:     "upstream_unavailable",
				message:  "AI service is temporarily unavailable due to timeout or connectivity issues.",
				fallback: transportFallback,
			}
		case se.Message != "":
			return failure{
				status:   se.Status,
				code:     "upstream_error",
				message:  fmt.Sprintf("AI service error: %s", se.Message),
				fallback: "I encountered an unexpected error while processing your request. Please try again.",
			}
		}
	}

	if isTransportError(err) {
		return failure{
			status:   http.StatusServiceUnavailable,
			code:     "transport",
			message:  "AI service is temporarily unavailable due to timeout or connectivity issues.",
			fallback: transportFallback,
		}
	}

	return failure{
		status:   http.StatusInternalServerError,
		code:     "unknown",
		message:  "Failed to generate AI response",
		fallback: "I apologize, but I'm unable to process your request right now. Please try again later.",
	}
}

// isTransportError reports whether err is a connection or timeout failure
// rather than a well-formed upstream response.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// details converts a failure into the reply's diagnostic block.
func (f failure) details() *chat.ErrorDetails {
	return &chat.ErrorDetails{
		Message:   f.message,
		Code:      f.code,
		Status:    f.status,
		Timestamp: time.Now().UTC(),
	}
}
