package converse

import "context"

// SessionService is the remote session store.
type SessionService interface {
	// ListSessions returns sessions in server order (most recent first).
	// Nested messages, when included, are sorted ascending.
	ListSessions(ctx context.Context) ([]Session, error)

	// GetSession returns the session with its messages sorted ascending.
	// Returns ErrSessionNotFound if the id is unknown.
	GetSession(ctx context.Context, id string) (Session, error)

	// CreateSession creates an empty session. An empty title lets the
	// server pick one later.
	CreateSession(ctx context.Context, title string) (Session, error)

	// UpdateSession renames a session.
	UpdateSession(ctx context.Context, id, title string) (Session, error)

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, id string) error
}

// SendRequest is a user message addressed to a session.
type SendRequest struct {
	Content   string
	SessionID string
	Provider  Provider
}

// SendResponse is the complete assistant reply to an atomic send.
type SendResponse struct {
	Content    string
	SessionID  string
	TokensUsed int
	Provider   Provider
}

// MessageService delivers user messages to the server.
type MessageService interface {
	// SendMessage performs an atomic send and returns the whole reply.
	SendMessage(ctx context.Context, req SendRequest) (SendResponse, error)

	// StreamMessage performs a streamed send. onChunk is called for each
	// content fragment, in order, on the calling goroutine. It returns
	// when the stream completes, fails, or ctx is cancelled.
	StreamMessage(ctx context.Context, req SendRequest, onChunk func(string)) error
}

// Notifier displays transient, non-blocking error notices.
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(err error)

// Notify calls f(err).
func (f NotifierFunc) Notify(err error) { f(err) }

// TokenStore holds the bearer credential used by the transport.
type TokenStore interface {
	// Token returns the stored token, or "" if none is stored.
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}
