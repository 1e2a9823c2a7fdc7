// Package http implements converse.SessionService and
// converse.MessageService against the chat server's REST API.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/converse"
	conversejson "github.com/fwojciec/converse/json"
	"github.com/fwojciec/converse/sse"
	"github.com/rs/zerolog"
)

// Interface compliance checks.
var (
	_ converse.SessionService = (*Client)(nil)
	_ converse.MessageService = (*Client)(nil)
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// Client talks to the chat server over HTTP.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         zerolog.Logger
	tokens         converse.TokenStore
	onUnauthorized func()
	onDecodeError  func(*converse.StreamDecodeError)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the server base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped
// with an AuthTransport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTokenStore sets where the bearer token is read from.
func WithTokenStore(s converse.TokenStore) Option {
	return func(c *Client) { c.tokens = s }
}

// WithUnauthorizedHandler registers a hook called after the server rejects
// the stored token.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithDecodeErrorHandler registers a hook for malformed stream lines.
func WithDecodeErrorHandler(fn func(*converse.StreamDecodeError)) Option {
	return func(c *Client) { c.onDecodeError = fn }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(converse.DefaultConfig().BaseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	hc := *c.httpClient
	hc.Transport = &AuthTransport{
		Base:           c.httpClient.Transport,
		Tokens:         c.tokens,
		OnUnauthorized: c.onUnauthorized,
		Logger:         c.logger,
	}
	c.httpClient = &hc
	return c
}

// ListSessions implements converse.SessionService.
func (c *Client) ListSessions(ctx context.Context) ([]converse.Session, error) {
	data, err := c.do(ctx, "list sessions", http.MethodGet, "/chat", nil)
	if err != nil {
		return nil, err
	}
	sessions, err := conversejson.UnmarshalSessions(data)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession implements converse.SessionService.
func (c *Client) GetSession(ctx context.Context, id string) (converse.Session, error) {
	data, err := c.do(ctx, "get session", http.MethodGet, sessionPath(id), nil)
	if err != nil {
		return converse.Session{}, err
	}
	return c.session("get session", data)
}

// CreateSession implements converse.SessionService.
func (c *Client) CreateSession(ctx context.Context, title string) (converse.Session, error) {
	body, err := conversejson.MarshalTitle(title)
	if err != nil {
		return converse.Session{}, fmt.Errorf("create session: %w", err)
	}
	data, err := c.do(ctx, "create session", http.MethodPost, "/chat", body)
	if err != nil {
		return converse.Session{}, err
	}
	return c.session("create session", data)
}

// UpdateSession implements converse.SessionService.
func (c *Client) UpdateSession(ctx context.Context, id, title string) (converse.Session, error) {
	body, err := conversejson.MarshalTitle(title)
	if err != nil {
		return converse.Session{}, fmt.Errorf("update session: %w", err)
	}
	data, err := c.do(ctx, "update session", http.MethodPut, sessionPath(id), body)
	if err != nil {
		return converse.Session{}, err
	}
	return c.session("update session", data)
}

// DeleteSession implements converse.SessionService. The response body is
// ignored.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, "delete session", http.MethodDelete, sessionPath(id), nil)
	return err
}

// SendMessage implements converse.MessageService.
func (c *Client) SendMessage(ctx context.Context, req converse.SendRequest) (converse.SendResponse, error) {
	body, err := conversejson.MarshalSendRequest(req)
	if err != nil {
		return converse.SendResponse{}, fmt.Errorf("send message: %w", err)
	}
	data, err := c.do(ctx, "send message", http.MethodPost, "/chat/message", body)
	if err != nil {
		return converse.SendResponse{}, err
	}
	resp, err := conversejson.UnmarshalSendResponse(data)
	if err != nil {
		return converse.SendResponse{}, fmt.Errorf("send message: %w", err)
	}
	return resp, nil
}

// StreamMessage implements converse.MessageService. A non-2xx status is
// returned as a *converse.StreamStartError before any chunk is delivered.
func (c *Client) StreamMessage(ctx context.Context, req converse.SendRequest, onChunk func(string)) error {
	body, err := conversejson.MarshalSendRequest(req)
	if err != nil {
		return fmt.Errorf("stream message: %w", err)
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/stream", body)
	if err != nil {
		return fmt.Errorf("stream message: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &converse.TransportError{Op: "stream message", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("stream message: %w", converse.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &converse.StreamStartError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	opts := []sse.Option{sse.WithLogger(c.logger)}
	if c.onDecodeError != nil {
		opts = append(opts, sse.OnDecodeError(c.onDecodeError))
	}
	if err := sse.Decode(resp.Body, onChunk, opts...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("stream message: %w", ctxErr)
		}
		return fmt.Errorf("stream message: %w", err)
	}
	return nil
}

func (c *Client) session(op string, data []byte) (converse.Session, error) {
	s, err := conversejson.UnmarshalSession(data)
	if err != nil {
		return converse.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// do performs a JSON request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &converse.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("http request")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%s: %w", op, converse.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s %s: %w", op, path, converse.ErrSessionNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &converse.TransportError{Op: op, StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &converse.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func sessionPath(id string) string {
	return "/chat/" + url.PathEscape(id)
}

// readErrorBody returns the server's error detail, or the raw body text
// when it is not a JSON error document.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	if detail, ok := conversejson.ErrorDetail(data); ok {
		return detail
	}
	return strings.TrimSpace(string(data))
}
