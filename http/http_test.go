package http_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/converse"
	conversehttp "github.com/fwojciec/converse/http"
	conversejson "github.com/fwojciec/converse/json"
	"github.com/fwojciec/converse/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.Handler, opts ...conversehttp.Option) *conversehttp.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]conversehttp.Option{
		conversehttp.WithBaseURL(srv.URL),
		conversehttp.WithHTTPClient(srv.Client()),
	}, opts...)
	return conversehttp.New(opts...)
}

func TestClient_ListSessions(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": "b", "title": "Newer"}, {"id": "a", "title": null}]`)
	})
	c := newClient(t, mux)

	sessions, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, converse.PlaceholderTitle, sessions[1].DisplayTitle())
}

func TestClient_GetSession(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "s 1" {
			http.Error(w, `{"detail": "Session not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"id": "s 1", "title": "T", "created_at": "2025-06-01T09:00:00", "messages": [
			{"id": "m2", "role": "assistant", "content": "Hello!", "created_at": "2025-06-01T09:00:02"},
			{"id": "m1", "role": "user", "content": "Hi", "created_at": "2025-06-01T09:00:01"}
		]}`)
	})
	c := newClient(t, mux)

	s, err := c.GetSession(context.Background(), "s 1")
	require.NoError(t, err)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "Hi", s.Messages[0].Content)
	assert.Equal(t, "s 1", s.Messages[0].SessionID)

	_, err = c.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, converse.ErrSessionNotFound)
}

func TestClient_GetSession_InvalidRecord(t *testing.T) {
	t.Parallel()
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "s1", "messages": [{"id": "m1", "role": "bot"}]}`)
	}))
	_, err := c.GetSession(context.Background(), "s1")
	assert.ErrorIs(t, err, converse.ErrValidation)
}

func TestClient_CreateAndUpdateSession(t *testing.T) {
	t.Parallel()
	var bodies []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		fmt.Fprint(w, `{"id": "new", "title": null, "created_at": "2025-06-01T09:00:00Z"}`)
	})
	mux.HandleFunc("PUT /chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		title, err := conversejson.UnmarshalTitle(data)
		require.NoError(t, err)
		fmt.Fprintf(w, `{"id": %q, "title": %q}`, r.PathValue("id"), title)
	})
	c := newClient(t, mux)

	s, err := c.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "new", s.ID)
	assert.NotNil(t, s.Messages)
	assert.Empty(t, s.Messages)
	assert.JSONEq(t, `{}`, bodies[0])

	s, err = c.UpdateSession(context.Background(), "new", "Trip plans")
	require.NoError(t, err)
	assert.Equal(t, "Trip plans", s.Title)
}

func TestClient_DeleteSession(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /chat/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "ok":
			fmt.Fprint(w, `not even json`)
		case "gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		}
	})
	c := newClient(t, mux)

	require.NoError(t, c.DeleteSession(context.Background(), "ok"))
	assert.ErrorIs(t, c.DeleteSession(context.Background(), "gone"), converse.ErrSessionNotFound)

	err := c.DeleteSession(context.Background(), "other")
	var te *converse.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	assert.Equal(t, "database unavailable", te.Body)
}

func TestClient_SendMessage(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/message", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		req, err := conversejson.UnmarshalSendRequest(data)
		require.NoError(t, err)
		assert.Equal(t, converse.SendRequest{Content: "Hi", SessionID: "S1", Provider: converse.ProviderOpenAI}, req)
		fmt.Fprint(w, `{"message": "Hello!", "session_id": "S1", "tokens_used": 5, "provider": "openai"}`)
	})
	c := newClient(t, mux)

	resp, err := c.SendMessage(context.Background(), converse.SendRequest{Content: "Hi", SessionID: "S1", Provider: converse.ProviderOpenAI})
	require.NoError(t, err)
	assert.Equal(t, converse.SendResponse{Content: "Hello!", SessionID: "S1", TokensUsed: 5, Provider: converse.ProviderOpenAI}, resp)
}

func TestClient_SendMessage_ServerError(t *testing.T) {
	t.Parallel()
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `{"detail": "upstream provider failed"}`)
	}))

	_, err := c.SendMessage(context.Background(), converse.SendRequest{Content: "Hi", SessionID: "S1", Provider: converse.ProviderOpenAI})
	var te *converse.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, "upstream provider failed", te.Body)
}

func TestClient_StreamMessage(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"Sure", ", ", "ok."} {
			fmt.Fprintf(w, "data: {\"content\": %q}\n\n", chunk)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: {broken\n\n")
	})
	var decodeErrs atomic.Int32
	c := newClient(t, mux, conversehttp.WithDecodeErrorHandler(func(*converse.StreamDecodeError) {
		decodeErrs.Add(1)
	}))

	var chunks []string
	err := c.StreamMessage(context.Background(), converse.SendRequest{Content: "More", SessionID: "S2", Provider: converse.ProviderClaude}, func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sure", ", ", "ok."}, chunks)
	assert.Equal(t, int32(1), decodeErrs.Load())
}

func TestClient_StreamMessage_StartError(t *testing.T) {
	t.Parallel()
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))

	called := false
	err := c.StreamMessage(context.Background(), converse.SendRequest{Content: "x", SessionID: "S", Provider: converse.ProviderOpenAI}, func(string) {
		called = true
	})
	var startErr *converse.StreamStartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, http.StatusServiceUnavailable, startErr.StatusCode)
	assert.Equal(t, "overloaded", startErr.Body)
	assert.False(t, called)
}

func TestClient_StreamMessage_Cancelled(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\": \"partial\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	err := c.StreamMessage(ctx, converse.SendRequest{Content: "x", SessionID: "S", Provider: converse.ProviderOpenAI}, func(string) {
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_BearerToken(t *testing.T) {
	t.Parallel()
	var got atomic.Value
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}), conversehttp.WithTokenStore(mock.NewTokenStore("secret")))

	_, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", got.Load())
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	t.Parallel()
	var got atomic.Value
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	}), conversehttp.WithTokenStore(mock.NewTokenStore("")))

	_, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", got.Load())
}

func TestClient_Unauthorized(t *testing.T) {
	t.Parallel()
	tokens := mock.NewTokenStore("expired")
	var hooks atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}),
		conversehttp.WithTokenStore(tokens),
		conversehttp.WithUnauthorizedHandler(func() { hooks.Add(1) }),
	)

	_, err := c.GetSession(context.Background(), "s1")
	assert.ErrorIs(t, err, converse.ErrUnauthorized)
	assert.Equal(t, int32(1), hooks.Load())
	assert.Equal(t, 1, tokens.Cleared())
	token, err := tokens.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	err = c.StreamMessage(context.Background(), converse.SendRequest{Content: "x", SessionID: "s1", Provider: converse.ProviderOpenAI}, func(string) {})
	assert.ErrorIs(t, err, converse.ErrUnauthorized)
	assert.Equal(t, int32(2), hooks.Load())
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := conversehttp.New(conversehttp.WithBaseURL(srv.URL), conversehttp.WithHTTPClient(&http.Client{Timeout: time.Second}))

	_, err := c.ListSessions(context.Background())
	var te *converse.TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Err)
}

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAuthTransport_TokenErrorClosesBody(t *testing.T) {
	t.Parallel()
	tr := &conversehttp.AuthTransport{
		Base: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Error("request must not be sent")
			return nil, fmt.Errorf("unexpected")
		}),
		Tokens: &mock.TokenStore{Err: fmt.Errorf("disk gone")},
	}
	body := &trackedBody{Reader: strings.NewReader(`{"title":"x"}`)}
	req, err := http.NewRequest(http.MethodPost, "http://example.test/chat", body)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load token")
	assert.True(t, body.closed.Load())
}
