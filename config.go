package converse

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds client settings. Zero durations disable the corresponding
// timeout or delay.
type Config struct {
	BaseURL        string
	Provider       Provider
	TokenFile      string
	LogLevel       string
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
	TitleDelay     time.Duration
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		Provider:       DefaultProvider,
		LogLevel:       "warn",
		RequestTimeout: 30 * time.Second,
		StreamTimeout:  5 * time.Minute,
		TitleDelay:     time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL %q must be an absolute http(s) URL: %w", c.BaseURL, ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme %q not supported: %w", u.Scheme, ErrValidation)
	}
	if !c.Provider.Valid() {
		return fmt.Errorf("unknown provider %q: %w", c.Provider, ErrValidation)
	}
	if c.RequestTimeout < 0 || c.StreamTimeout < 0 || c.TitleDelay < 0 {
		return fmt.Errorf("durations must be non-negative: %w", ErrValidation)
	}
	return nil
}
