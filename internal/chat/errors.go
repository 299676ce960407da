package chat

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRouteNotFound means the backend has no chat route (HTTP 404).
	// The streamer answers it with the local fallback.
	ErrRouteNotFound = errors.New("chat route not found")

	// ErrUnavailable wraps network-level failures: refused connections, DNS
	// errors, header timeouts and streams cut off mid-response. The streamer
	// answers it with the local fallback.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrBusy is returned when a session already has an exchange in flight.
	ErrBusy = errors.New("an exchange is already in flight")

	// ErrSessionClosed is returned by Send on a retired session.
	ErrSessionClosed = errors.New("chat session closed")
)

// StatusError is a non-success response that carried a body. It is terminal:
// the streamer surfaces it inside the assistant message and does not fall back.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	text := http.StatusText(e.Code)
	if text == "" {
		text = "unexpected status"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("backend returned %d %s", e.Code, text)
	}
	return fmt.Sprintf("backend returned %d %s: %s", e.Code, text, msg)
}

// IsFallbackCause reports whether err should switch an exchange to the local
// fallback rather than end it with an error.
func IsFallbackCause(err error) bool {
	return errors.Is(err, ErrRouteNotFound) || errors.Is(err, ErrUnavailable)
}
