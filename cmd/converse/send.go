package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fwojciec/converse"
	"github.com/spf13/cobra"
)

func (a *app) newSendCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send a message and print the reply",
		Long: `Send a message and print the reply as it arrives.

Without --session a new session is created and its id is printed to stderr.
The first message of a session is answered in one piece; later messages
stream.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			logger := a.logger()
			client := a.client(logger)
			out := &replyPrinter{w: a.stdout}

			chat := converse.NewChat(client, client,
				converse.WithConfig(a.cfg),
				converse.WithLogger(logger),
				converse.WithChangeHandler(out.update),
				converse.WithNotifier(converse.NotifierFunc(func(err error) {
					logger.Warn().Err(err).Msg("notice")
				})),
			)
			defer chat.Close()

			ctx := cmd.Context()
			if sessionID == "" {
				s, err := chat.CreateSession(ctx, "")
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stderr, "session %s\n", s.ID)
			} else if err := chat.SelectSession(ctx, sessionID); err != nil {
				return err
			}

			out.arm()
			err := chat.Send(ctx, content, a.cfg.Provider)
			out.finish()
			return err
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to send to (default: a new session)")
	return cmd
}

// replyPrinter writes the growing assistant reply of the latest send to w,
// printing each new suffix once.
type replyPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	armed   bool
	printed string
}

// arm starts printing; snapshots published before arm are ignored.
func (p *replyPrinter) arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = true
}

func (p *replyPrinter) update(st converse.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.armed {
		return
	}
	last, ok := st.Transcript.Last()
	if !ok || last.Role != converse.RoleAssistant {
		return
	}
	rest, ok := strings.CutPrefix(last.Content, p.printed)
	if !ok || rest == "" {
		return
	}
	fmt.Fprint(p.w, rest)
	p.printed = last.Content
}

func (p *replyPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = false
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.w)
	}
}
