package converse

import "time"

// Message is a single entry in a session's conversation.
//
// ID is empty until the server acknowledges the message. Optimistic
// messages inserted by the client carry a LocalID instead, which is how
// in-flight sends address them.
type Message struct {
	ID         string
	LocalID    string
	Content    string
	Role       Role
	SessionID  string
	CreatedAt  time.Time
	TokensUsed int      // 0 when not reported
	Provider   Provider // empty when untagged
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool { return m.Role == RoleUser }

// Pending reports whether the message has not been confirmed by the server.
func (m Message) Pending() bool { return m.ID == "" }
