package main

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/converse"
	conversejson "github.com/fwojciec/converse/json"
	"github.com/spf13/cobra"
)

func (a *app) newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"s"},
		Short:   "Manage chat sessions",
	}
	cmd.AddCommand(
		a.newSessionsListCommand(),
		a.newSessionsShowCommand(),
		a.newSessionsCreateCommand(),
		a.newSessionsRenameCommand(),
		a.newSessionsDeleteCommand(),
	)
	return cmd
}

func (a *app) newSessionsListCommand() *cobra.Command {
	var (
		match  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if match != "" && !doublestar.ValidatePattern(match) {
				return fmt.Errorf("invalid --match pattern %q: %w", match, converse.ErrValidation)
			}
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()

			sessions, err := a.client(a.logger()).ListSessions(ctx)
			if err != nil {
				return err
			}
			sessions = filterSessions(sessions, match)

			if asJSON {
				data, err := conversejson.MarshalSessions(sessions)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.stdout, "%s\n", data)
				return err
			}
			for _, s := range sessions {
				fmt.Fprintf(a.stdout, "%s\t%s\n", s.ID, s.DisplayTitle())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&match, "match", "m", "", "Only list sessions whose title matches this glob")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")
	return cmd
}

// filterSessions keeps sessions whose display title matches the glob
// pattern, which must already be valid. An empty pattern keeps everything.
func filterSessions(sessions []converse.Session, pattern string) []converse.Session {
	if pattern == "" {
		return sessions
	}
	var out []converse.Session
	for _, s := range sessions {
		if ok, _ := doublestar.Match(pattern, s.DisplayTitle()); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a *app) newSessionsShowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()

			s, err := a.client(a.logger()).GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				data, err := conversejson.MarshalSession(s)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.stdout, "%s\n", data)
				return err
			}
			fmt.Fprintf(a.stdout, "# %s\n", s.DisplayTitle())
			for _, m := range s.Messages {
				fmt.Fprintf(a.stdout, "\n%s: %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session as JSON")
	return cmd
}

func (a *app) newSessionsCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [title]",
		Short: "Create an empty session and print its id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var title string
			if len(args) == 1 {
				title = args[0]
			}
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()

			s, err := a.client(a.logger()).CreateSession(ctx, title)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, s.ID)
			return nil
		},
	}
}

func (a *app) newSessionsRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.requestContext(cmd.Context())
			defer cancel()

			s, err := a.client(a.logger()).UpdateSession(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s\t%s\n", s.ID, s.DisplayTitle())
			return nil
		},
	}
}

func (a *app) newSessionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client(a.logger())
			for _, id := range args {
				ctx, cancel := a.requestContext(cmd.Context())
				err := client.DeleteSession(ctx, id)
				cancel()
				if err != nil {
					return fmt.Errorf("delete %s: %w", id, err)
				}
			}
			return nil
		},
	}
}

// requestContext bounds a single request by the configured timeout.
func (a *app) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.cfg.RequestTimeout)
}
