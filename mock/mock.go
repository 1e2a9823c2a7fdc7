// Package mock provides test doubles for converse interfaces using function fields.
package mock

import (
	"context"
	"sync"

	"github.com/fwojciec/converse"
)

// Interface compliance checks.
var (
	_ converse.SessionService = (*SessionService)(nil)
	_ converse.MessageService = (*MessageService)(nil)
	_ converse.Notifier       = (*Notifier)(nil)
	_ converse.TokenStore     = (*TokenStore)(nil)
)

// SessionService is a test double for converse.SessionService.
// Set the function fields for the methods you need; unset fields panic.
type SessionService struct {
	ListSessionsFn  func(ctx context.Context) ([]converse.Session, error)
	GetSessionFn    func(ctx context.Context, id string) (converse.Session, error)
	CreateSessionFn func(ctx context.Context, title string) (converse.Session, error)
	UpdateSessionFn func(ctx context.Context, id, title string) (converse.Session, error)
	DeleteSessionFn func(ctx context.Context, id string) error
}

// ListSessions delegates to ListSessionsFn.
func (s *SessionService) ListSessions(ctx context.Context) ([]converse.Session, error) {
	return s.ListSessionsFn(ctx)
}

// GetSession delegates to GetSessionFn.
func (s *SessionService) GetSession(ctx context.Context, id string) (converse.Session, error) {
	return s.GetSessionFn(ctx, id)
}

// CreateSession delegates to CreateSessionFn.
func (s *SessionService) CreateSession(ctx context.Context, title string) (converse.Session, error) {
	return s.CreateSessionFn(ctx, title)
}

// UpdateSession delegates to UpdateSessionFn.
func (s *SessionService) UpdateSession(ctx context.Context, id, title string) (converse.Session, error) {
	return s.UpdateSessionFn(ctx, id, title)
}

// DeleteSession delegates to DeleteSessionFn.
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	return s.DeleteSessionFn(ctx, id)
}

// MessageService is a test double for converse.MessageService.
type MessageService struct {
	SendMessageFn   func(ctx context.Context, req converse.SendRequest) (converse.SendResponse, error)
	StreamMessageFn func(ctx context.Context, req converse.SendRequest, onChunk func(string)) error
}

// SendMessage delegates to SendMessageFn.
func (s *MessageService) SendMessage(ctx context.Context, req converse.SendRequest) (converse.SendResponse, error) {
	return s.SendMessageFn(ctx, req)
}

// StreamMessage delegates to StreamMessageFn.
func (s *MessageService) StreamMessage(ctx context.Context, req converse.SendRequest, onChunk func(string)) error {
	return s.StreamMessageFn(ctx, req, onChunk)
}

// Notifier records every notified error. The zero value is ready to use.
type Notifier struct {
	mu   sync.Mutex
	errs []error
}

// Notify records err.
func (n *Notifier) Notify(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

// Errors returns the recorded errors in order.
func (n *Notifier) Errors() []error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]error(nil), n.errs...)
}

// TokenStore is an in-memory converse.TokenStore. The zero value holds no
// token. Err, when set, is returned by every method.
type TokenStore struct {
	mu      sync.Mutex
	token   string
	cleared int
	Err     error
}

// NewTokenStore returns a TokenStore holding token.
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

// Token returns the stored token.
func (s *TokenStore) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.Err
}

// SetToken replaces the stored token.
func (s *TokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.token = token
	return nil
}

// Clear removes the stored token.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.token = ""
	s.cleared++
	return nil
}

// Cleared returns how many times Clear succeeded.
func (s *TokenStore) Cleared() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}
