// Package yaml loads client configuration files.
package yaml

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/fwojciec/converse"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors converse.Config. Unset fields keep their defaults.
type fileConfig struct {
	BaseURL        *string `yaml:"base_url"`
	Provider       *string `yaml:"provider"`
	TokenFile      *string `yaml:"token_file"`
	LogLevel       *string `yaml:"log_level"`
	RequestTimeout *string `yaml:"request_timeout"`
	StreamTimeout  *string `yaml:"stream_timeout"`
	TitleDelay     *string `yaml:"title_delay"`
}

// LoadConfig reads the file at path over the defaults. A missing file
// yields the defaults unchanged. The result is not validated, so callers
// can apply further overrides first.
func LoadConfig(path string) (converse.Config, error) {
	cfg := converse.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data, cfg)
}

// ParseConfig applies the YAML document in data on top of base.
func ParseConfig(data []byte, base converse.Config) (converse.Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("parse config: %w: %w", converse.ErrValidation, err)
	}

	cfg := base
	if fc.BaseURL != nil {
		cfg.BaseURL = *fc.BaseURL
	}
	if fc.Provider != nil {
		p, err := converse.ParseProvider(*fc.Provider)
		if err != nil {
			return base, fmt.Errorf("parse config: %w", err)
		}
		cfg.Provider = p
	}
	if fc.TokenFile != nil {
		cfg.TokenFile = *fc.TokenFile
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	for _, d := range []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"request_timeout", fc.RequestTimeout, &cfg.RequestTimeout},
		{"stream_timeout", fc.StreamTimeout, &cfg.StreamTimeout},
		{"title_delay", fc.TitleDelay, &cfg.TitleDelay},
	} {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return base, fmt.Errorf("parse config: %s: %w: %w", d.name, converse.ErrValidation, err)
		}
		*d.dst = v
	}
	return cfg, nil
}

// MarshalConfig renders cfg as YAML.
func MarshalConfig(cfg converse.Config) ([]byte, error) {
	str := func(s string) *string { return &s }
	return yaml.Marshal(fileConfig{
		BaseURL:        str(cfg.BaseURL),
		Provider:       str(string(cfg.Provider)),
		TokenFile:      str(cfg.TokenFile),
		LogLevel:       str(cfg.LogLevel),
		RequestTimeout: str(cfg.RequestTimeout.String()),
		StreamTimeout:  str(cfg.StreamTimeout.String()),
		TitleDelay:     str(cfg.TitleDelay.String()),
	})
}
