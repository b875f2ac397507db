package session

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"resumelift/internal/errors"
	"resumelift/internal/types"
)

// SignedURLFunc fetches a short-lived signed session URL for the configured
// voice agent
type SignedURLFunc func(ctx context.Context, agentID string) (string, error)

// EventSink receives normalized events from a realtime connection
type EventSink func(Event)

// Connection is an open realtime channel to the voice agent
type Connection interface {
	Close() error
}

// Transport opens realtime connections. Implementations deliver inbound
// events through the sink in arrival order.
type Transport interface {
	Connect(ctx context.Context, signedURL string, contextVars map[string]string, sink EventSink) (Connection, error)
}

// AudioSource acquires the microphone for the duration of a connection.
// At most one capture handle is open at a time.
type AudioSource interface {
	Acquire(ctx context.Context) (io.Closer, error)
}

// Config carries the voice settings the manager needs at construction
type Config struct {
	AgentID           string
	InactivityTimeout time.Duration
}

// Manager owns exactly one logical voice interview session. It serializes
// all state mutations through its mutex because transport callbacks and
// timer fires arrive on arbitrary goroutines.
type Manager struct {
	mu      sync.Mutex
	session Session
	conn    Connection
	mic     io.Closer
	timer   *time.Timer
	closed  bool

	startedAt time.Time

	cfg       Config
	signedURL SignedURLFunc
	transport Transport
	audio     AudioSource
	logger    *errors.Logger

	onToast  func(message string, isError bool)
	onPrompt func()
}

// NewManager creates a session manager for one interview
func NewManager(cfg Config, signedURL SignedURLFunc, transport Transport, audio AudioSource, logger *errors.Logger) *Manager {
	return &Manager{
		session:   NewSession(),
		cfg:       cfg,
		signedURL: signedURL,
		transport: transport,
		audio:     audio,
		logger:    logger,
	}
}

// SetToastHandler registers a callback for user-facing transient messages
func (m *Manager) SetToastHandler(fn func(message string, isError bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToast = fn
}

// SetPromptHandler registers a callback for the inactivity "still there?"
// prompt
func (m *Manager) SetPromptHandler(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPrompt = fn
}

// Snapshot returns a copy of the current session
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	if s.Transcript != nil {
		s.Transcript = append([]types.ChatMessage(nil), s.Transcript...)
	}
	return s
}

// StartedAt returns when the session first connected, or the zero time if
// it never has
func (m *Manager) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

// Start opens the realtime connection: microphone, signed URL, then the
// transport, passing the resume summary and rolling conversation history as
// context variables. It is a no-op while already Connecting or Connected,
// so overlapping triggers cannot open a second connection. Failures leave
// the session in New or Paused so the user can retry; the transcript is
// never touched by a failed start.
func (m *Manager) Start(ctx context.Context, parsed *types.ParsedResume) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.NewValidationError(errors.ErrCodeSessionCompleted,
			"The interview session has already completed", nil)
	}
	switch m.session.ConnectionState {
	case StateConnecting, StateConnected:
		m.mu.Unlock()
		return nil
	}
	continuation := m.session.everConnected
	transcript := append([]types.ChatMessage(nil), m.session.Transcript...)
	m.session.ConnectionState = StateConnecting
	m.mu.Unlock()

	var mic io.Closer
	if m.audio != nil {
		var err error
		mic, err = m.audio.Acquire(ctx)
		if err != nil {
			m.revertConnecting()
			return errors.NewPermissionError(errors.ErrCodeMicPermission,
				"Microphone access was denied. Voice interview is unavailable until access is granted.", err)
		}
	}

	signedURL, err := m.signedURL(ctx, m.cfg.AgentID)
	if err != nil {
		closeQuietly(mic)
		m.revertConnecting()
		return errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			"Could not obtain a session URL from the voice provider", err)
	}

	vars := map[string]string{
		"resume_summary":       BuildResumeContext(parsed),
		"conversation_history": buildRollingHistory(transcript),
		"is_continuation":      strconv.FormatBool(continuation),
	}

	conn, err := m.transport.Connect(ctx, signedURL, vars, m.handle)
	if err != nil {
		closeQuietly(mic)
		m.revertConnecting()
		return errors.NewNetworkError(errors.ErrCodeRealtimeConnect,
			"Could not connect to the voice agent", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		closeQuietly(mic)
		return errors.NewValidationError(errors.ErrCodeSessionCompleted,
			"The interview session has already completed", nil)
	}
	m.conn = conn
	m.mic = mic
	if m.startedAt.IsZero() {
		m.startedAt = time.Now()
	}
	m.mu.Unlock()

	m.logger.Info("Interview session started",
		"agent_id", m.cfg.AgentID,
		"continuation", continuation)
	return nil
}

// Resume reopens a paused session. The context variables carry the
// continuation flag so the agent does not re-introduce itself.
func (m *Manager) Resume(ctx context.Context, parsed *types.ParsedResume) error {
	return m.Start(ctx, parsed)
}

// Pause gracefully ends the realtime connection while preserving the
// transcript. Idempotent when not connected.
func (m *Manager) Pause() {
	m.mu.Lock()
	conn, mic := m.conn, m.mic
	m.conn, m.mic = nil, nil
	active := m.session.ConnectionState == StateConnected || m.session.ConnectionState == StateConnecting
	m.mu.Unlock()

	closeQuietly(conn)
	closeQuietly(mic)
	if active {
		m.handle(Disconnected{ByUser: true})
	}
}

// ContinueAfterPrompt records the user's choice to keep going after the
// inactivity prompt and re-arms the timer
func (m *Manager) ContinueAfterPrompt() {
	m.mu.Lock()
	m.session.AwaitingDecision = false
	m.mu.Unlock()
	m.rearmTimer()
}

// Finish ends any active connection, appends the synthetic summary message,
// and returns the full transcript. The session is terminal afterward.
func (m *Manager) Finish() ([]types.ChatMessage, error) {
	m.mu.Lock()
	if m.session.ConnectionState == StateCompleted {
		out := append([]types.ChatMessage(nil), m.session.Transcript...)
		m.mu.Unlock()
		return out, errors.NewValidationError(errors.ErrCodeSessionCompleted,
			"The interview session has already completed", nil)
	}
	conn, mic := m.conn, m.mic
	m.conn, m.mic = nil, nil
	m.closed = true
	m.session.ConnectionState = StateCompleted
	m.session.AwaitingDecision = false

	var elapsed time.Duration
	if !m.startedAt.IsZero() {
		elapsed = time.Since(m.startedAt)
	}
	summary := buildFinishSummary(m.session.Transcript, elapsed)
	m.session.Transcript = appendMessage(m.session.Transcript, types.RoleSystem, summary)
	out := append([]types.ChatMessage(nil), m.session.Transcript...)
	timer := m.timer
	m.timer = nil
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	closeQuietly(conn)
	closeQuietly(mic)

	m.logger.Info("Interview session finished", "transcript_messages", len(out))
	return out, nil
}

// Teardown closes any active connection without producing a summary. It is
// idempotent and safe to call when no session exists; used when the
// workflow restarts.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	conn, mic := m.conn, m.mic
	m.conn, m.mic = nil, nil
	m.closed = true
	m.session.ConnectionState = StateCompleted
	timer := m.timer
	m.timer = nil
	m.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	closeQuietly(conn)
	closeQuietly(mic)
}

// handle is the single entry point for all asynchronous events. Late
// events arriving after Finish or Teardown are discarded rather than
// applied to a completed session.
func (m *Manager) handle(ev Event) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	next, effects := transition(m.session, ev)
	m.session = next
	onToast := m.onToast
	onPrompt := m.onPrompt
	m.mu.Unlock()

	for _, eff := range effects {
		switch e := eff.(type) {
		case RearmTimer:
			m.rearmTimer()
		case StopTimer:
			m.stopTimer()
		case ShowToast:
			if e.IsError {
				m.logger.Warn("Interview session notice", "message", e.Message)
			}
			if onToast != nil {
				onToast(e.Message, e.IsError)
			}
		case PromptStillThere:
			m.logger.Info("Interview inactive, prompting user")
			if onPrompt != nil {
				onPrompt()
			}
		}
	}
}

func (m *Manager) rearmTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.cfg.InactivityTimeout <= 0 {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.cfg.InactivityTimeout, func() {
		m.handle(InactivityElapsed{})
	})
}

func (m *Manager) stopTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// revertConnecting returns a failed start attempt to its retryable state
func (m *Manager) revertConnecting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session.ConnectionState != StateConnecting {
		return
	}
	if m.session.everConnected {
		m.session.ConnectionState = StatePaused
	} else {
		m.session.ConnectionState = StateNew
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		c.Close()
	}
}
