package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/converse"
	conversehttp "github.com/fwojciec/converse/http"
	conversejson "github.com/fwojciec/converse/json"
	converseyaml "github.com/fwojciec/converse/yaml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Environment variables consulted when the matching flag is not set.
const (
	envConfig    = "CONVERSE_CONFIG"
	envBaseURL   = "CONVERSE_BASE_URL"
	envProvider  = "CONVERSE_PROVIDER"
	envTokenFile = "CONVERSE_TOKEN_FILE"
	envLogLevel  = "CONVERSE_LOG_LEVEL"
)

type globalFlags struct {
	configPath string
	baseURL    string
	provider   string
	tokenFile  string
	logLevel   string
}

// resolveConfig layers flags over environment over the config file over
// the defaults, then validates the result.
func resolveConfig(flags globalFlags, getenv func(string) string) (converse.Config, error) {
	path := firstNonEmpty(flags.configPath, getenv(envConfig), defaultPath("config.yaml"))
	cfg, err := converseyaml.LoadConfig(path)
	if err != nil {
		return converse.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg.BaseURL = firstNonEmpty(flags.baseURL, getenv(envBaseURL), cfg.BaseURL)
	cfg.TokenFile = firstNonEmpty(flags.tokenFile, getenv(envTokenFile), cfg.TokenFile, defaultPath("token.json"))
	cfg.LogLevel = firstNonEmpty(flags.logLevel, getenv(envLogLevel), cfg.LogLevel)
	if p := firstNonEmpty(flags.provider, getenv(envProvider)); p != "" {
		provider, err := converse.ParseProvider(p)
		if err != nil {
			return converse.Config{}, err
		}
		cfg.Provider = provider
	}

	if err := cfg.Validate(); err != nil {
		return converse.Config{}, err
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return converse.Config{}, err
	}
	return cfg, nil
}

// defaultPath returns name inside the user's converse config directory.
func defaultPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "converse", name)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.WarnLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, converse.ErrValidation)
	}
	return lvl, nil
}

// newLogger returns a human-readable logger writing to w.
func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func (a *app) logger() zerolog.Logger {
	return newLogger(a.stderr, a.cfg.LogLevel)
}

func (a *app) tokens() *conversejson.TokenFile {
	return conversejson.NewTokenFile(a.cfg.TokenFile)
}

// client builds the HTTP repository for the resolved configuration.
func (a *app) client(logger zerolog.Logger) *conversehttp.Client {
	return conversehttp.New(
		conversehttp.WithBaseURL(a.cfg.BaseURL),
		conversehttp.WithTokenStore(a.tokens()),
		conversehttp.WithLogger(logger),
		conversehttp.WithDecodeErrorHandler(func(err *converse.StreamDecodeError) {
			logger.Debug().Str("line", err.Line).Msg("dropped stream line")
		}),
	)
}

func (a *app) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := converseyaml.MarshalConfig(a.cfg)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	})
	return cmd
}
