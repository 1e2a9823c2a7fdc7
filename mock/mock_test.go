package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/converse"
	"github.com/fwojciec/converse/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService(t *testing.T) {
	t.Parallel()

	t.Run("delegates to GetSessionFn", func(t *testing.T) {
		t.Parallel()
		s := mock.SessionService{
			GetSessionFn: func(ctx context.Context, id string) (converse.Session, error) {
				return converse.Session{ID: id}, nil
			},
		}
		got, err := s.GetSession(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
	})

	t.Run("panics when fn not set", func(t *testing.T) {
		t.Parallel()
		s := mock.SessionService{}
		assert.Panics(t, func() {
			_, _ = s.ListSessions(context.Background())
		})
	})
}

func TestMessageService_StreamMessage(t *testing.T) {
	t.Parallel()
	s := mock.MessageService{
		StreamMessageFn: func(ctx context.Context, req converse.SendRequest, onChunk func(string)) error {
			onChunk(req.Content)
			return nil
		},
	}
	var got []string
	err := s.StreamMessage(context.Background(), converse.SendRequest{Content: "hi"}, func(c string) {
		got = append(got, c)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, got)
}

func TestNotifier(t *testing.T) {
	t.Parallel()
	var n mock.Notifier
	want := errors.New("boom")
	n.Notify(want)
	assert.Equal(t, []error{want}, n.Errors())
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	t.Run("set and clear", func(t *testing.T) {
		t.Parallel()
		s := mock.NewTokenStore("abc")
		tok, err := s.Token()
		require.NoError(t, err)
		assert.Equal(t, "abc", tok)

		require.NoError(t, s.Clear())
		tok, err = s.Token()
		require.NoError(t, err)
		assert.Empty(t, tok)
		assert.Equal(t, 1, s.Cleared())
	})

	t.Run("returns configured error", func(t *testing.T) {
		t.Parallel()
		wantErr := errors.New("disk full")
		s := &mock.TokenStore{Err: wantErr}
		assert.ErrorIs(t, s.SetToken("x"), wantErr)
	})
}
