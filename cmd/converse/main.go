// Command converse is a terminal client for a converse chat server.
//
// Usage:
//
//	converse tui                      interactive chat
//	converse send [-s id] <message>   send one message and print the reply
//	converse sessions list            list sessions
//	converse auth set-token <token>   store the bearer token
//
// Settings are resolved from flags, then CONVERSE_* environment variables,
// then the config file (default: $XDG_CONFIG_HOME/converse/config.yaml).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fwojciec/converse"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand(os.Stdin, os.Stdout, os.Stderr, os.Getenv)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "converse: %v\n", err)
		if errors.Is(err, converse.ErrUnauthorized) {
			fmt.Fprintln(os.Stderr, "hint: store a token with 'converse auth set-token'")
		}
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root command has
// resolved configuration.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	flags globalFlags
	cfg   converse.Config
}

func newRootCommand(stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, getenv: getenv}

	root := &cobra.Command{
		Use:           "converse",
		Short:         "Chat with a converse server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(a.flags, a.getenv)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Path to config file")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "Server base URL")
	pf.StringVarP(&a.flags.provider, "provider", "p", "", "Provider: openai, claude, deepseek")
	pf.StringVar(&a.flags.tokenFile, "token-file", "", "Path to the bearer token file")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error, disabled")

	root.AddCommand(
		a.newSessionsCommand(),
		a.newSendCommand(),
		a.newAuthCommand(),
		a.newConfigCommand(),
		a.newTUICommand(),
	)
	return root
}
