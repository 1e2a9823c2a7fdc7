package main

import (
	"fmt"
	"os"

	"github.com/fwojciec/converse"
	bt "github.com/fwojciec/converse/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func (a *app) newTUICommand() *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to the UI, so logs go to a file or nowhere.
			logger := zerolog.Nop()
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				lvl, _ := parseLevel(a.cfg.LogLevel)
				logger = zerolog.New(f).Level(lvl).With().Timestamp().Logger()
			}

			bridge := bt.NewBridge()
			client := a.client(logger)
			chat := converse.NewChat(client, client,
				converse.WithConfig(a.cfg),
				converse.WithLogger(logger),
				converse.WithChangeHandler(bridge.Publish),
				converse.WithNotifier(bridge),
			)
			defer chat.Close()

			m := bt.New(chat, bridge,
				bt.WithProvider(a.cfg.Provider),
				bt.WithContext(cmd.Context()),
			)
			if err := bt.Run(cmd.Context(), m); err != nil {
				return fmt.Errorf("TUI: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file")
	return cmd
}
