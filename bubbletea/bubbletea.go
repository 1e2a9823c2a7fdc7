// Package bubbletea provides a Bubble Tea terminal UI for converse. The UI
// holds no conversation state of its own: it renders snapshots published
// by a converse.Chat and forwards user intent back to it.
package bubbletea

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/converse"
)

// Controller is the subset of *converse.Chat the UI drives.
type Controller interface {
	State() converse.State
	LoadSessions(ctx context.Context) error
	CreateSession(ctx context.Context, title string) (converse.Session, error)
	SelectSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	Send(ctx context.Context, content string, provider converse.Provider) error
	Cancel()
}

var _ Controller = (*converse.Chat)(nil)

// Run creates and runs the Bubble Tea program. It blocks until the program
// exits. Cancelling ctx quits the program.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// StateMsg delivers a Chat snapshot to the model.
type StateMsg struct {
	State converse.State
}

// NoticeMsg delivers a transient error notice to the model.
type NoticeMsg struct {
	Err error
}

// opDoneMsg reports the outcome of a Controller call started by the model.
type opDoneMsg struct {
	Err error
}

var _ converse.Notifier = (*Bridge)(nil)

// Bridge carries Chat callbacks, which arrive on arbitrary goroutines, into
// the Bubble Tea event loop. Snapshots are coalesced: only the newest one
// is delivered. Notices are dropped when the model falls far behind.
type Bridge struct {
	mu      sync.Mutex
	latest  converse.State
	changed chan struct{}
	notices chan error
}

// NewBridge creates a Bridge. Pass its Publish method to
// converse.WithChangeHandler and the Bridge itself to converse.WithNotifier.
func NewBridge() *Bridge {
	return &Bridge{
		changed: make(chan struct{}, 1),
		notices: make(chan error, 16),
	}
}

// Publish records st unless a newer snapshot has already been recorded.
func (b *Bridge) Publish(st converse.State) {
	b.mu.Lock()
	if st.Version >= b.latest.Version {
		b.latest = st
	}
	b.mu.Unlock()
	select {
	case b.changed <- struct{}{}:
	default:
	}
}

// Notify implements converse.Notifier.
func (b *Bridge) Notify(err error) {
	select {
	case b.notices <- err:
	default:
	}
}

// Listen returns a command waiting for the next snapshot or notice.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.changed:
			b.mu.Lock()
			st := b.latest
			b.mu.Unlock()
			return StateMsg{State: st}
		case err := <-b.notices:
			return NoticeMsg{Err: err}
		}
	}
}
