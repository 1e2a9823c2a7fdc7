package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/converse"
)

type sessionDTO struct {
	ID        id            `json:"id"`
	Title     *string       `json:"title"`
	UserID    id            `json:"user_id"`
	CreatedAt timestamp     `json:"created_at"`
	UpdatedAt timestamp     `json:"updated_at"`
	Messages  *[]messageDTO `json:"messages,omitempty"`
}

type messageDTO struct {
	ID         id        `json:"id"`
	Content    string    `json:"content"`
	Role       string    `json:"role"`
	SessionID  id        `json:"session_id"`
	CreatedAt  timestamp `json:"created_at"`
	TokensUsed *int      `json:"tokens_used,omitempty"`
	Provider   *string   `json:"provider,omitempty"`
}

// UnmarshalSession decodes a single session record. Its messages, when
// present, are validated and sorted by creation time; a session record
// without a messages field decodes with an empty, non-nil slice.
func UnmarshalSession(data []byte) (converse.Session, error) {
	var dto sessionDTO
	if err := decode("session", data, &dto); err != nil {
		return converse.Session{}, err
	}
	s, err := dto.session()
	if err != nil {
		return converse.Session{}, err
	}
	if s.Messages == nil {
		s.Messages = []converse.Message{}
	}
	return s, nil
}

// UnmarshalSessions decodes a session list, preserving server order.
// Sessions listed without messages have nil Messages.
func UnmarshalSessions(data []byte) ([]converse.Session, error) {
	var dtos []sessionDTO
	if err := decode("session list", data, &dtos); err != nil {
		return nil, err
	}
	sessions := make([]converse.Session, len(dtos))
	for i, dto := range dtos {
		s, err := dto.session()
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		sessions[i] = s
	}
	return sessions, nil
}

// MarshalSession encodes a session in wire format.
func MarshalSession(s converse.Session) ([]byte, error) {
	title := s.Title
	dto := sessionDTO{
		ID:        id(s.ID),
		Title:     &title,
		UserID:    id(s.UserID),
		CreatedAt: timestamp{s.CreatedAt},
		UpdatedAt: timestamp{s.UpdatedAt},
	}
	if s.Messages != nil {
		msgs := make([]messageDTO, len(s.Messages))
		for i, m := range s.Messages {
			msgs[i] = marshalMessage(m)
		}
		dto.Messages = &msgs
	}
	return json.MarshalIndent(dto, "", "  ")
}

// MarshalSessions encodes a session list in wire format.
func MarshalSessions(sessions []converse.Session) ([]byte, error) {
	raws := make([]json.RawMessage, len(sessions))
	for i, s := range sessions {
		data, err := MarshalSession(s)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		raws[i] = data
	}
	return json.MarshalIndent(raws, "", "  ")
}

func (dto sessionDTO) session() (converse.Session, error) {
	if dto.ID == "" {
		return converse.Session{}, fmt.Errorf("session without id: %w", converse.ErrValidation)
	}
	s := converse.Session{
		ID:        string(dto.ID),
		UserID:    string(dto.UserID),
		CreatedAt: dto.CreatedAt.Time,
		UpdatedAt: dto.UpdatedAt.Time,
	}
	if dto.Title != nil {
		s.Title = *dto.Title
	}
	if dto.Messages != nil {
		s.Messages = make([]converse.Message, len(*dto.Messages))
		for i, m := range *dto.Messages {
			msg, err := m.message(s.ID)
			if err != nil {
				return converse.Session{}, fmt.Errorf("session %s: message %d: %w", s.ID, i, err)
			}
			s.Messages[i] = msg
		}
		converse.SortMessages(s.Messages)
	}
	return s, nil
}

func (dto messageDTO) message(sessionID string) (converse.Message, error) {
	if dto.ID == "" {
		return converse.Message{}, fmt.Errorf("message without id: %w", converse.ErrValidation)
	}
	role := converse.Role(dto.Role)
	if !role.Valid() {
		return converse.Message{}, fmt.Errorf("message %s: unknown role %q: %w", dto.ID, dto.Role, converse.ErrValidation)
	}
	m := converse.Message{
		ID:        string(dto.ID),
		Content:   dto.Content,
		Role:      role,
		SessionID: string(dto.SessionID),
		CreatedAt: dto.CreatedAt.Time,
	}
	if m.SessionID == "" {
		m.SessionID = sessionID
	}
	if dto.TokensUsed != nil {
		m.TokensUsed = *dto.TokensUsed
	}
	if dto.Provider != nil {
		m.Provider = converse.Provider(*dto.Provider)
	}
	return m, nil
}

func marshalMessage(m converse.Message) messageDTO {
	dto := messageDTO{
		ID:        id(m.ID),
		Content:   m.Content,
		Role:      string(m.Role),
		SessionID: id(m.SessionID),
		CreatedAt: timestamp{m.CreatedAt},
	}
	if m.TokensUsed != 0 {
		n := m.TokensUsed
		dto.TokensUsed = &n
	}
	if m.Provider != "" {
		p := string(m.Provider)
		dto.Provider = &p
	}
	return dto
}
