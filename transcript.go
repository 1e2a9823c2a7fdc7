package converse

import "slices"

// Transcript is the ordered projection of the active session's messages.
//
// Transitions are pure: every method returns a new Transcript and leaves
// the receiver untouched, so snapshots handed to observers never change
// underneath them.
type Transcript struct {
	SessionID string
	Messages  []Message
}

// NewTranscript builds a transcript for sessionID from msgs, sorted by
// CreatedAt ascending. msgs is not modified.
func NewTranscript(sessionID string, msgs []Message) Transcript {
	sorted := slices.Clone(msgs)
	SortMessages(sorted)
	return Transcript{SessionID: sessionID, Messages: sorted}
}

// Len returns the number of messages.
func (t Transcript) Len() int { return len(t.Messages) }

// Empty reports whether the transcript holds no messages.
func (t Transcript) Empty() bool { return len(t.Messages) == 0 }

// Seeded reports whether the transcript contains at least one user message.
func (t Transcript) Seeded() bool {
	return slices.ContainsFunc(t.Messages, Message.IsUser)
}

// Last returns the final message, if any.
func (t Transcript) Last() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[len(t.Messages)-1], true
}

// Find returns the message carrying localID.
func (t Transcript) Find(localID string) (Message, bool) {
	i := t.index(localID)
	if i < 0 {
		return Message{}, false
	}
	return t.Messages[i], true
}

// Append returns a transcript with msg added at the end.
func (t Transcript) Append(msg Message) Transcript {
	t.Messages = append(slices.Clip(t.Messages), msg)
	return t
}

// SetContent overwrites the content of the assistant message identified by
// localID. The second result is false, and the transcript unchanged, when
// no such message exists or it is not assistant-role.
func (t Transcript) SetContent(localID, content string) (Transcript, bool) {
	i := t.index(localID)
	if i < 0 || t.Messages[i].Role != RoleAssistant {
		return t, false
	}
	t.Messages = slices.Clone(t.Messages)
	t.Messages[i].Content = content
	return t, true
}

// Fail marks the assistant message identified by localID as failed. An
// empty message gets ApologyText as its content; one holding partial
// output gets ApologyText appended after a blank line.
func (t Transcript) Fail(localID string) Transcript {
	msg, ok := t.Find(localID)
	if !ok {
		return t
	}
	content := ApologyText
	if msg.Content != "" {
		content = msg.Content + "\n\n" + ApologyText
	}
	t, _ = t.SetContent(localID, content)
	return t
}

func (t Transcript) index(localID string) int {
	if localID == "" {
		return -1
	}
	return slices.IndexFunc(t.Messages, func(m Message) bool {
		return m.LocalID == localID
	})
}
