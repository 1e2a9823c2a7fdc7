package http

import (
	"fmt"
	"net/http"

	"github.com/fwojciec/converse"
	"github.com/rs/zerolog"
)

// AuthTransport adds the stored bearer token to outgoing requests. When the
// server answers 401 it clears the token and calls OnUnauthorized; the
// response is passed through unchanged.
type AuthTransport struct {
	Base           http.RoundTripper // http.DefaultTransport when nil
	Tokens         converse.TokenStore
	OnUnauthorized func()
	Logger         zerolog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Tokens != nil {
		token, err := t.Tokens.Token()
		if err != nil {
			if req.Body != nil {
				req.Body.Close()
			}
			return nil, fmt.Errorf("load token: %w", err)
		}
		if token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.Logger.Warn().Str("path", req.URL.Path).Msg("server rejected credentials")
		if t.Tokens != nil {
			if err := t.Tokens.Clear(); err != nil {
				t.Logger.Error().Err(err).Msg("clear token")
			}
		}
		if t.OnUnauthorized != nil {
			t.OnUnauthorized()
		}
	}
	return resp, nil
}
