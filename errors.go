package converse

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or record failed validation.
	ErrValidation = errors.New("validation error")

	// ErrSessionNotFound indicates the server does not know the session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSession indicates a send was attempted with no active session.
	ErrInvalidSession = errors.New("no active session")

	// ErrUnauthorized indicates the server rejected the stored credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSendInProgress indicates a send was attempted while another is in flight.
	ErrSendInProgress = errors.New("send already in progress")
)

// ApologyText replaces the assistant reply when a send fails.
const ApologyText = "Sorry, I couldn't complete that response. Please try again."

// TransportError is a network or HTTP failure before any payload could be
// interpreted. StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport error"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// StreamStartError is returned when the streaming endpoint answers with a
// non-2xx status. No chunk has been delivered when it is returned.
type StreamStartError struct {
	StatusCode int
	Body       string
}

func (e *StreamStartError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream start: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("stream start: HTTP %d: %s", e.StatusCode, e.Body)
}

// StreamDecodeError describes a data line that could not be parsed. It is
// recovered from: decoding continues with the next line.
type StreamDecodeError struct {
	Line string
	Err  error
}

func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("stream decode %q: %v", e.Line, e.Err)
}

func (e *StreamDecodeError) Unwrap() error { return e.Err }

// StreamServerError carries an error reported by the server inside the
// stream. It terminates the stream.
type StreamServerError struct {
	Message string
}

func (e *StreamServerError) Error() string {
	return "stream: server error: " + e.Message
}
