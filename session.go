package converse

import (
	"slices"
	"time"
)

// PlaceholderTitle is displayed for sessions the server has not titled yet.
const PlaceholderTitle = "New chat"

// Session represents a server-stored conversation.
//
// Messages is nil when the session was listed without its messages and
// non-nil (possibly empty) once fetched. When present it is ordered by
// CreatedAt ascending.
type Session struct {
	ID        string
	Title     string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
}

// DisplayTitle returns the title, or PlaceholderTitle when it is empty.
func (s Session) DisplayTitle() string {
	if s.Title == "" {
		return PlaceholderTitle
	}
	return s.Title
}

// Seeded reports whether the session contains at least one user message.
func (s Session) Seeded() bool {
	return slices.ContainsFunc(s.Messages, Message.IsUser)
}

// SortMessages orders msgs by CreatedAt ascending in place. The sort is
// stable so messages with equal timestamps keep the server's order.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
