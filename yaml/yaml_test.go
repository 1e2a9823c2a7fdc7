package yaml_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fwojciec/converse"
	converseyaml "github.com/fwojciec/converse/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
base_url: https://chat.example.com
provider: Claude
request_timeout: 10s
title_delay: 0s
`)
	cfg, err := converseyaml.LoadConfig(path)
	require.NoError(t, err)

	want := converse.DefaultConfig()
	want.BaseURL = "https://chat.example.com"
	want.Provider = converse.ProviderClaude
	want.RequestTimeout = 10 * time.Second
	want.TitleDelay = 0
	assert.Equal(t, want, cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := converseyaml.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, converse.DefaultConfig(), cfg)

	cfg, err = converseyaml.LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, converse.DefaultConfig(), cfg)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"syntax":   "base_url: [unterminated",
		"provider": "provider: gemini",
		"duration": "stream_timeout: forever",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := converseyaml.LoadConfig(writeConfig(t, content))
			assert.ErrorIs(t, err, converse.ErrValidation)
		})
	}
}

func TestMarshalConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := converse.DefaultConfig()
	cfg.TokenFile = "/tmp/token.json"
	cfg.StreamTimeout = 90 * time.Second

	data, err := converseyaml.MarshalConfig(cfg)
	require.NoError(t, err)
	got, err := converseyaml.ParseConfig(data, converse.Config{})
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
