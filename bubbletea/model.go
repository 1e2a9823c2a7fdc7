package bubbletea

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/converse"
	"github.com/fwojciec/converse/goldmark"
)

var _ tea.Model = Model{}

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// Model is the Bubble Tea model for the converse TUI.
type Model struct {
	// Input is the message composer. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable transcript. Exported for test access.
	Viewport viewport.Model

	chat     Controller
	bridge   *Bridge
	ctx      context.Context
	styles   Styles
	renderer *goldmark.Renderer

	state    converse.State
	provider converse.Provider
	notice   error
	focus    focus
	cursor   int

	// Assistant blocks are kept across snapshots, keyed by message, so
	// streaming growth reuses their render cache.
	assistant map[string]*AssistantTextBlock

	width  int
	height int
	ready  bool
}

// Option configures a Model.
type Option func(*Model)

// WithTheme sets the color theme.
func WithTheme(t converse.Theme) Option {
	return func(m *Model) {
		m.styles = NewStyles(t)
		m.renderer = goldmark.New(t)
	}
}

// WithProvider sets the provider selected at startup.
func WithProvider(p converse.Provider) Option {
	return func(m *Model) { m.provider = p }
}

// WithContext sets the context Controller calls run under.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// New creates a Model driving chat. bridge must be the Bridge receiving
// chat's snapshots and notices.
func New(chat Controller, bridge *Bridge, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	theme := converse.DefaultTheme()
	m := Model{
		Input:     ti,
		chat:      chat,
		bridge:    bridge,
		ctx:       context.Background(),
		styles:    NewStyles(theme),
		renderer:  goldmark.New(theme),
		state:     chat.State(),
		provider:  converse.DefaultProvider,
		assistant: make(map[string]*AssistantTextBlock),
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// State returns the last snapshot the model received.
func (m Model) State() converse.State { return m.state }

// Provider returns the provider used for the next send.
func (m Model) Provider() converse.Provider { return m.provider }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.bridge.Listen(),
		m.run(func(ctx context.Context) error { return m.chat.LoadSessions(ctx) }),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m = m.applyState(msg.State)
		return m, m.bridge.Listen()

	case NoticeMsg:
		m.notice = msg.Err
		return m, m.bridge.Listen()

	case opDoneMsg:
		// Controller failures reach the notifier too; this catches the
		// ones it does not report, such as a send while one is running.
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.notice = msg.Err
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if m.focus == focusInput {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	sw := sidebarWidth(m.width)

	var main strings.Builder
	main.WriteString(m.titleLine())
	main.WriteString("\n")
	main.WriteString(m.Viewport.View())
	main.WriteString("\n")
	main.WriteString(m.statusLine())
	main.WriteString("\n")
	main.WriteString(m.Input.View())

	if sw <= 1 {
		return main.String()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(sw, m.height), main.String())
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	m.width, m.height = msg.Width, msg.Height
	mainWidth := msg.Width - sidebarWidth(msg.Width)
	// Title, status and input take one line each.
	vpHeight := max(msg.Height-3, 1)

	if !m.ready {
		m.Viewport = viewport.New(mainWidth, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = mainWidth
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = mainWidth
	m.Viewport.SetContent(m.renderTranscript())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.state.Sending {
			m.chat.Cancel()
			return m, nil
		}
		return m, tea.Quit

	case "esc":
		if m.state.Sending {
			m.chat.Cancel()
		}
		return m, nil

	case "tab":
		if m.focus == focusInput {
			m.focus = focusSidebar
			m.Input.Blur()
			return m, nil
		}
		m.focus = focusInput
		return m, m.Input.Focus()

	case "ctrl+n":
		m.notice = nil
		return m, m.run(func(ctx context.Context) error {
			_, err := m.chat.CreateSession(ctx, "")
			return err
		})

	case "ctrl+p":
		m.provider = m.provider.Next()
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if msg.Type == tea.KeyEnter {
		text := strings.TrimSpace(m.Input.Value())
		if text == "" || m.state.Sending {
			return m, nil
		}
		return m.submit(text)
	}

	// Only non-character keys scroll, so typing j or k edits the input.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.cursor = clampCursor(m.cursor-1, len(m.state.Sessions))
	case "down", "j":
		m.cursor = clampCursor(m.cursor+1, len(m.state.Sessions))
	case "enter":
		s, ok := m.sessionAt(m.cursor)
		if !ok {
			return m, nil
		}
		m.notice = nil
		m.focus = focusInput
		return m, tea.Batch(m.Input.Focus(), m.run(func(ctx context.Context) error {
			return m.chat.SelectSession(ctx, s.ID)
		}))
	case "d", "delete":
		s, ok := m.sessionAt(m.cursor)
		if !ok {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			return m.chat.DeleteSession(ctx, s.ID)
		})
	case "r":
		return m, m.run(func(ctx context.Context) error { return m.chat.LoadSessions(ctx) })
	}
	return m, nil
}

// submit sends text to the active session, creating one first when none
// is selected.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.notice = nil
	needSession := m.state.Active == nil
	provider := m.provider
	return m, m.run(func(ctx context.Context) error {
		if needSession {
			if _, err := m.chat.CreateSession(ctx, ""); err != nil {
				return err
			}
		}
		return m.chat.Send(ctx, text, provider)
	})
}

// run executes fn off the event loop and reports its outcome.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{Err: fn(ctx)}
	}
}

func (m Model) applyState(st converse.State) Model {
	if st.Version < m.state.Version {
		return m
	}
	m.state = st
	m.cursor = clampCursor(m.cursor, len(st.Sessions))
	if m.ready {
		m.Viewport.SetContent(m.renderTranscript())
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) renderTranscript() string {
	if m.state.Active == nil {
		return m.styles.Muted.Render("Select a session with tab, or start typing to begin a new chat.")
	}
	if m.state.Loading {
		return m.styles.Muted.Render("Loading messages...")
	}

	width := m.Viewport.Width
	live := make(map[string]*AssistantTextBlock, len(m.assistant))
	var blocks []string
	for _, msg := range m.state.Transcript.Messages {
		switch msg.Role {
		case converse.RoleUser:
			blocks = append(blocks, NewUserMessageBlock(msg.Content, m.styles).View(width))
		case converse.RoleAssistant:
			key := msg.ID
			if key == "" {
				key = "local:" + msg.LocalID
			}
			b, ok := m.assistant[key]
			if !ok {
				b = NewAssistantTextBlock(m.renderer, m.styles)
			}
			b.SetContent(msg.Content)
			live[key] = b
			blocks = append(blocks, b.View(width))
		}
	}
	// Drop blocks of messages no longer in the transcript.
	clear(m.assistant)
	for k, b := range live {
		m.assistant[k] = b
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) titleLine() string {
	if m.state.Active == nil {
		return m.styles.Muted.Render("converse")
	}
	return m.styles.Accent.Render(truncate(m.state.Active.DisplayTitle(), m.Viewport.Width))
}

func (m Model) statusLine() string {
	switch {
	case m.notice != nil:
		return m.styles.Error.Render(fmt.Sprintf("Error: %v", m.notice))
	case m.state.Sending:
		return m.styles.Muted.Render("Generating... (esc to stop)")
	case m.state.Loading:
		return m.styles.Muted.Render("Loading...")
	}
	return m.styles.Muted.Render(fmt.Sprintf("%s · enter send · tab sessions · ctrl+n new · ctrl+p provider · ctrl+c quit", m.provider))
}
