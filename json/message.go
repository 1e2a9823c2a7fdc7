package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/converse"
)

type sendRequestDTO struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Provider  string `json:"provider"`
}

type sendResponseDTO struct {
	Message    *string `json:"message"`
	SessionID  id      `json:"session_id"`
	TokensUsed *int    `json:"tokens_used"`
	Provider   *string `json:"provider"`
}

type titleDTO struct {
	Title string `json:"title,omitempty"`
}

// MarshalSendRequest encodes the body shared by the atomic and streaming
// send endpoints.
func MarshalSendRequest(req converse.SendRequest) ([]byte, error) {
	return json.Marshal(sendRequestDTO{
		Message:   req.Content,
		SessionID: req.SessionID,
		Provider:  string(req.Provider),
	})
}

// UnmarshalSendRequest decodes a send request body.
func UnmarshalSendRequest(data []byte) (converse.SendRequest, error) {
	var dto sendRequestDTO
	if err := decode("send request", data, &dto); err != nil {
		return converse.SendRequest{}, err
	}
	return converse.SendRequest{
		Content:   dto.Message,
		SessionID: dto.SessionID,
		Provider:  converse.Provider(dto.Provider),
	}, nil
}

// UnmarshalSendResponse decodes the atomic send reply. A reply without a
// message field is rejected.
func UnmarshalSendResponse(data []byte) (converse.SendResponse, error) {
	var dto sendResponseDTO
	if err := decode("send response", data, &dto); err != nil {
		return converse.SendResponse{}, err
	}
	if dto.Message == nil {
		return converse.SendResponse{}, fmt.Errorf("send response without message: %w", converse.ErrValidation)
	}
	resp := converse.SendResponse{
		Content:   *dto.Message,
		SessionID: string(dto.SessionID),
	}
	if dto.TokensUsed != nil {
		resp.TokensUsed = *dto.TokensUsed
	}
	if dto.Provider != nil {
		resp.Provider = converse.Provider(*dto.Provider)
	}
	return resp, nil
}

// MarshalSendResponse encodes an atomic send reply.
func MarshalSendResponse(resp converse.SendResponse) ([]byte, error) {
	content := resp.Content
	dto := sendResponseDTO{Message: &content, SessionID: id(resp.SessionID)}
	if resp.TokensUsed != 0 {
		n := resp.TokensUsed
		dto.TokensUsed = &n
	}
	if resp.Provider != "" {
		p := string(resp.Provider)
		dto.Provider = &p
	}
	return json.Marshal(dto)
}

// MarshalTitle encodes the body of a session create or update request. An
// empty title is omitted so the server picks one.
func MarshalTitle(title string) ([]byte, error) {
	return json.Marshal(titleDTO{Title: title})
}

// UnmarshalTitle decodes a session create or update request body. An
// empty body yields an empty title.
func UnmarshalTitle(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var dto titleDTO
	if err := decode("title", data, &dto); err != nil {
		return "", err
	}
	return dto.Title, nil
}

type errorDTO struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

// ErrorDetail extracts the human-readable message from an error response
// body of the form {"detail": "..."} or {"error": "..."}.
func ErrorDetail(data []byte) (string, bool) {
	var dto errorDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return "", false
	}
	var detail string
	if len(dto.Detail) > 0 && json.Unmarshal(dto.Detail, &detail) == nil && detail != "" {
		return detail, true
	}
	if dto.Error != "" {
		return dto.Error, true
	}
	return "", false
}
