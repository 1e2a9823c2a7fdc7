package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fwojciec/converse"
	"github.com/spf13/cobra"
)

func (a *app) newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored bearer token",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set-token [token]",
			Short: "Store the bearer token (read from stdin when omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				token, err := a.readToken(args)
				if err != nil {
					return err
				}
				if err := a.tokens().SetToken(token); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "token stored in %s\n", a.cfg.TokenFile)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored bearer token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.tokens().Clear()
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether a bearer token is stored",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				token, err := a.tokens().Token()
				if err != nil {
					return err
				}
				if token == "" {
					fmt.Fprintf(a.stdout, "no token in %s\n", a.cfg.TokenFile)
					return nil
				}
				fmt.Fprintf(a.stdout, "token stored in %s\n", a.cfg.TokenFile)
				return nil
			},
		},
	)
	return cmd
}

func (a *app) readToken(args []string) (string, error) {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		sc := bufio.NewScanner(a.stdin)
		if sc.Scan() {
			token = sc.Text()
		}
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("empty token: %w", converse.ErrValidation)
	}
	return token, nil
}
