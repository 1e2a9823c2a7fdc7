package converse

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// State is a point-in-time snapshot of a Chat. Snapshots are immutable;
// Version increases with every transition so observers receiving
// snapshots from several goroutines can discard stale ones.
type State struct {
	Version    uint64
	Sessions   []Session
	Active     *Session // nil when no session is selected; Messages is nil
	Transcript Transcript
	Loading    bool // the active session's messages are being fetched
	Sending    bool
}

// Chat owns the session list, the active session, and its transcript. It
// decides how each message is delivered and reconciles optimistic state
// with the server once a send completes.
//
// All methods are safe for concurrent use. Only one send may be in flight
// at a time.
type Chat struct {
	sessions SessionService
	messages MessageService
	notifier Notifier
	logger   zerolog.Logger
	onChange func(State)
	newID    func() string

	requestTimeout time.Duration
	streamTimeout  time.Duration
	titleDelay     time.Duration

	mu         sync.Mutex
	version    uint64
	list       []Session
	active     *Session
	transcript Transcript
	loading    bool
	loaded     bool // transcript holds the active session's fetched messages
	inflight   *send

	refresh singleflight.Group
	bg      sync.WaitGroup
	ctx     context.Context
	stop    context.CancelFunc
}

// send is the handle of one in-flight send.
type send struct {
	id        string
	sessionID string
	target    string // LocalID of the assistant message receiving chunks
	cancel    context.CancelFunc
	acc       strings.Builder
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithNotifier sets the collaborator that displays transient error notices.
func WithNotifier(n Notifier) ChatOption {
	return func(c *Chat) { c.notifier = n }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) ChatOption {
	return func(c *Chat) { c.logger = l }
}

// WithChangeHandler registers a callback receiving a snapshot after every
// state transition. It is called without internal locks held, possibly
// from several goroutines.
func WithChangeHandler(fn func(State)) ChatOption {
	return func(c *Chat) { c.onChange = fn }
}

// WithIDFunc sets the generator for LocalIDs and send handles.
func WithIDFunc(fn func() string) ChatOption {
	return func(c *Chat) { c.newID = fn }
}

// WithRequestTimeout bounds repository calls and atomic sends.
func WithRequestTimeout(d time.Duration) ChatOption {
	return func(c *Chat) { c.requestTimeout = d }
}

// WithStreamTimeout bounds a streamed send from request to last chunk.
func WithStreamTimeout(d time.Duration) ChatOption {
	return func(c *Chat) { c.streamTimeout = d }
}

// WithTitleDelay sets how long to wait after a first exchange before
// refetching the session for its server-generated title.
func WithTitleDelay(d time.Duration) ChatOption {
	return func(c *Chat) { c.titleDelay = d }
}

// WithConfig applies the timeouts and delay from cfg.
func WithConfig(cfg Config) ChatOption {
	return func(c *Chat) {
		c.requestTimeout = cfg.RequestTimeout
		c.streamTimeout = cfg.StreamTimeout
		c.titleDelay = cfg.TitleDelay
	}
}

// NewChat creates a Chat backed by the given services.
func NewChat(sessions SessionService, messages MessageService, opts ...ChatOption) *Chat {
	def := DefaultConfig()
	c := &Chat{
		sessions:       sessions,
		messages:       messages,
		logger:         zerolog.Nop(),
		newID:          uuid.NewString,
		requestTimeout: def.RequestTimeout,
		streamTimeout:  def.StreamTimeout,
		titleDelay:     def.TitleDelay,
	}
	for _, o := range opts {
		o(c)
	}
	c.ctx, c.stop = context.WithCancel(context.Background())
	return c
}

// State returns the current snapshot.
func (c *Chat) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadSessions replaces the session list with the server's.
func (c *Chat) LoadSessions(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx, c.requestTimeout)
	defer cancel()

	list, err := c.sessions.ListSessions(ctx)
	if err != nil {
		return c.fail(fmt.Errorf("list sessions: %w", err))
	}
	c.update(func() bool {
		c.list = list
		return true
	})
	return nil
}

// CreateSession creates an empty session, adds it to the top of the list
// and makes it active.
func (c *Chat) CreateSession(ctx context.Context, title string) (Session, error) {
	ctx, cancel := c.withTimeout(ctx, c.requestTimeout)
	defer cancel()

	s, err := c.sessions.CreateSession(ctx, title)
	if err != nil {
		return Session{}, c.fail(fmt.Errorf("create session: %w", err))
	}
	c.update(func() bool {
		c.cancelInflightLocked()
		entry := s
		entry.Messages = nil
		c.list = append([]Session{entry}, c.list...)
		c.active = &entry
		c.transcript = Transcript{SessionID: s.ID}
		c.loading = false
		c.loaded = true
		return true
	})
	c.logger.Debug().Str("session_id", s.ID).Msg("session created")
	return s, nil
}

// SelectSession makes id the active session. The current transcript and
// any in-flight send are discarded before the session is fetched.
func (c *Chat) SelectSession(ctx context.Context, id string) error {
	if id == "" {
		return c.fail(fmt.Errorf("select session: %w", ErrInvalidSession))
	}
	c.update(func() bool {
		c.cancelInflightLocked()
		active := Session{ID: id}
		if i := c.indexLocked(id); i >= 0 {
			active = c.list[i]
			active.Messages = nil
		}
		c.active = &active
		c.transcript = Transcript{SessionID: id}
		c.loading = true
		c.loaded = false
		return true
	})

	ctx, cancel := c.withTimeout(ctx, c.requestTimeout)
	defer cancel()

	s, err := c.sessions.GetSession(ctx, id)
	if err != nil {
		c.update(func() bool {
			if !c.activeLocked(id) {
				return false
			}
			c.loading = false
			if errors.Is(err, ErrSessionNotFound) {
				c.removeLocked(id)
				c.active = nil
				c.transcript = Transcript{}
			}
			return true
		})
		return c.fail(fmt.Errorf("select session %s: %w", id, err))
	}
	c.update(func() bool {
		// A later selection has superseded this one.
		if !c.activeLocked(id) {
			return false
		}
		c.mergeLocked(s)
		c.transcript = NewTranscript(id, s.Messages)
		c.loading = false
		c.loaded = true
		return true
	})
	return nil
}

// RenameSession sets a session's title on the server and locally.
func (c *Chat) RenameSession(ctx context.Context, id, title string) error {
	ctx, cancel := c.withTimeout(ctx, c.requestTimeout)
	defer cancel()

	s, err := c.sessions.UpdateSession(ctx, id, title)
	if err != nil {
		return c.fail(fmt.Errorf("rename session %s: %w", id, err))
	}
	c.update(func() bool { return c.mergeLocked(s) })
	return nil
}

// DeleteSession deletes a session. A session the server no longer knows
// counts as deleted. When id is active, the active session, transcript and
// any in-flight send are cleared.
func (c *Chat) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := c.withTimeout(ctx, c.requestTimeout)
	defer cancel()

	if err := c.sessions.DeleteSession(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return c.fail(fmt.Errorf("delete session %s: %w", id, err))
	}
	c.update(func() bool {
		changed := c.removeLocked(id)
		if c.activeLocked(id) {
			c.cancelInflightLocked()
			c.active = nil
			c.transcript = Transcript{}
			c.loading = false
			c.loaded = false
			changed = true
		}
		return changed
	})
	return nil
}

// Send delivers content to the active session. Sessions without a user
// message yet use an atomic send so the server can title the session from
// the first exchange; seeded sessions stream.
//
// Failures are reflected in the transcript and reported to the Notifier;
// the error is also returned.
func (c *Chat) Send(ctx context.Context, content string, provider Provider) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("send: empty message: %w", ErrValidation)
	}
	if !provider.Valid() {
		return fmt.Errorf("send: unknown provider %q: %w", provider, ErrValidation)
	}

	c.mu.Lock()
	switch {
	case c.active == nil:
		c.mu.Unlock()
		return c.fail(fmt.Errorf("send: %w", ErrInvalidSession))
	case c.loading:
		c.mu.Unlock()
		return c.fail(fmt.Errorf("send: session %s is still loading: %w", c.active.ID, ErrInvalidSession))
	case !c.loaded:
		// Without the fetched messages the seeded check would be a guess.
		c.mu.Unlock()
		return c.fail(fmt.Errorf("send: messages of session %s are not loaded: %w", c.active.ID, ErrInvalidSession))
	case c.inflight != nil:
		c.mu.Unlock()
		return fmt.Errorf("send: %w", ErrSendInProgress)
	}

	seeded := c.transcript.Seeded()
	timeout := c.requestTimeout
	if seeded {
		timeout = c.streamTimeout
	}
	sendCtx, cancel := c.withTimeout(ctx, timeout)
	s := &send{id: c.newID(), sessionID: c.active.ID, cancel: cancel}
	c.inflight = s

	now := time.Now()
	c.transcript = c.transcript.Append(Message{
		LocalID:   c.newID(),
		Content:   content,
		Role:      RoleUser,
		SessionID: s.sessionID,
		CreatedAt: now,
		Provider:  provider,
	})
	if seeded {
		s.target = c.newID()
		c.transcript = c.transcript.Append(Message{
			LocalID:   s.target,
			Role:      RoleAssistant,
			SessionID: s.sessionID,
			CreatedAt: now,
			Provider:  provider,
		})
	}
	c.version++
	st := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(st)
	defer c.finish(s)

	req := SendRequest{Content: content, SessionID: s.sessionID, Provider: provider}
	log := c.logger.With().Str("session_id", s.sessionID).Str("provider", string(provider)).Logger()
	if seeded {
		log.Debug().Msg("dispatching streamed send")
		return c.stream(sendCtx, s, req)
	}
	log.Debug().Msg("dispatching atomic send")
	return c.atomic(sendCtx, s, req)
}

// Cancel aborts the in-flight send, if any. The transcript is finalised as
// for a failed send.
func (c *Chat) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight != nil {
		c.inflight.cancel()
	}
}

// Wait blocks until background session refreshes have finished.
func (c *Chat) Wait() {
	c.bg.Wait()
}

// Close cancels the in-flight send and background work, then waits for
// background work to exit.
func (c *Chat) Close() error {
	c.mu.Lock()
	c.cancelInflightLocked()
	c.mu.Unlock()
	c.stop()
	c.bg.Wait()
	return nil
}

func (c *Chat) atomic(ctx context.Context, s *send, req SendRequest) error {
	resp, err := c.messages.SendMessage(ctx, req)
	if err != nil {
		c.update(func() bool {
			if !c.currentLocked(s) {
				return false
			}
			c.transcript = c.transcript.Append(Message{
				LocalID:   c.newID(),
				Content:   ApologyText,
				Role:      RoleAssistant,
				SessionID: s.sessionID,
				CreatedAt: time.Now(),
			})
			return true
		})
		return c.sendFailed(s, fmt.Errorf("send message: %w", err))
	}

	provider := resp.Provider
	if provider == "" {
		provider = req.Provider
	}
	c.update(func() bool {
		if !c.currentLocked(s) {
			return false
		}
		c.transcript = c.transcript.Append(Message{
			LocalID:    c.newID(),
			Content:    resp.Content,
			Role:       RoleAssistant,
			SessionID:  s.sessionID,
			CreatedAt:  time.Now(),
			TokensUsed: resp.TokensUsed,
			Provider:   provider,
		})
		return true
	})
	c.scheduleSync(s.sessionID)
	return nil
}

func (c *Chat) stream(ctx context.Context, s *send, req SendRequest) error {
	err := c.messages.StreamMessage(ctx, req, func(chunk string) {
		c.update(func() bool {
			// Chunks of a send that was cancelled or whose session is no
			// longer active are dropped.
			if !c.currentLocked(s) {
				return false
			}
			s.acc.WriteString(chunk)
			t, ok := c.transcript.SetContent(s.target, s.acc.String())
			if ok {
				c.transcript = t
			}
			return ok
		})
	})
	if err != nil {
		c.update(func() bool {
			if !c.currentLocked(s) {
				return false
			}
			c.transcript = c.transcript.Fail(s.target)
			return true
		})
		return c.sendFailed(s, fmt.Errorf("stream message: %w", err))
	}

	// Optimistic messages lack server ids, usage and provider tags; replace
	// them with the canonical record.
	fetchCtx, cancel := c.withTimeout(c.ctx, c.requestTimeout)
	defer cancel()
	fetched, err := c.sessions.GetSession(fetchCtx, s.sessionID)
	if err != nil {
		c.notify(fmt.Errorf("refresh session %s: %w", s.sessionID, err))
		return nil
	}
	c.update(func() bool {
		changed := c.mergeLocked(fetched)
		if c.currentLocked(s) {
			c.transcript = NewTranscript(s.sessionID, fetched.Messages)
			changed = true
		}
		return changed
	})
	return nil
}

// sendFailed reports err unless the send was superseded or the caller
// cancelled it.
func (c *Chat) sendFailed(s *send, err error) error {
	c.mu.Lock()
	current := c.currentLocked(s)
	c.mu.Unlock()
	if current && !errors.Is(err, context.Canceled) {
		c.notify(err)
	}
	return err
}

func (c *Chat) finish(s *send) {
	c.update(func() bool {
		if c.inflight != s {
			return false
		}
		c.inflight = nil
		return true
	})
	s.cancel()
}

// scheduleSync refreshes a session's title and timestamps after the title
// delay, in the background.
func (c *Chat) scheduleSync(id string) {
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		if err := c.syncSession(c.ctx, id); err != nil && !errors.Is(err, context.Canceled) {
			c.notify(err)
		}
	}()
}

func (c *Chat) syncSession(ctx context.Context, id string) error {
	_, err, _ := c.refresh.Do(id, func() (any, error) {
		if c.titleDelay > 0 {
			t := time.NewTimer(c.titleDelay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		ctx, cancel := c.withTimeout(ctx, c.requestTimeout)
		defer cancel()
		s, err := c.sessions.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("refresh session %s: %w", id, err)
		}
		c.update(func() bool { return c.mergeLocked(s) })
		c.logger.Debug().Str("session_id", id).Str("title", s.Title).Msg("session refreshed")
		return nil, nil
	})
	return err
}

// update applies fn under the lock and publishes a snapshot if fn reports
// a change.
func (c *Chat) update(fn func() bool) bool {
	c.mu.Lock()
	changed := fn()
	var st State
	if changed {
		c.version++
		st = c.snapshotLocked()
	}
	c.mu.Unlock()
	if changed {
		c.publish(st)
	}
	return changed
}

func (c *Chat) publish(st State) {
	if c.onChange != nil {
		c.onChange(st)
	}
}

func (c *Chat) snapshotLocked() State {
	st := State{
		Version:    c.version,
		Sessions:   slices.Clone(c.list),
		Transcript: c.transcript,
		Loading:    c.loading,
		Sending:    c.inflight != nil,
	}
	if c.active != nil {
		a := *c.active
		st.Active = &a
	}
	return st
}

// mergeLocked copies title and timestamps from s into the active session
// (when it is s) and into the matching list entry. Other entries are left
// untouched.
func (c *Chat) mergeLocked(s Session) bool {
	changed := false
	if c.activeLocked(s.ID) {
		a := *c.active
		mergeSession(&a, s)
		c.active = &a
		changed = true
	}
	if i := c.indexLocked(s.ID); i >= 0 {
		list := slices.Clone(c.list)
		mergeSession(&list[i], s)
		c.list = list
		changed = true
	}
	return changed
}

func mergeSession(dst *Session, src Session) {
	dst.Title = src.Title
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	if !src.UpdatedAt.IsZero() {
		dst.UpdatedAt = src.UpdatedAt
	}
	if src.UserID != "" {
		dst.UserID = src.UserID
	}
}

func (c *Chat) removeLocked(id string) bool {
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.list = slices.Delete(slices.Clone(c.list), i, i+1)
	return true
}

func (c *Chat) indexLocked(id string) int {
	return slices.IndexFunc(c.list, func(s Session) bool { return s.ID == id })
}

func (c *Chat) activeLocked(id string) bool {
	return c.active != nil && c.active.ID == id
}

// currentLocked reports whether s is still the in-flight send of the
// active session.
func (c *Chat) currentLocked(s *send) bool {
	return c.inflight == s && c.activeLocked(s.sessionID)
}

func (c *Chat) cancelInflightLocked() {
	if c.inflight == nil {
		return
	}
	c.inflight.cancel()
	c.inflight = nil
}

func (c *Chat) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (c *Chat) fail(err error) error {
	c.notify(err)
	return err
}

func (c *Chat) notify(err error) {
	c.logger.Warn().Err(err).Msg("chat operation failed")
	if c.notifier != nil {
		c.notifier.Notify(err)
	}
}
