package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resumelift/internal/types"
)

// ConnectionState tracks the lifecycle of a voice interview session
type ConnectionState int

const (
	StateNew ConnectionState = iota
	StateConnecting
	StateConnected
	StatePaused
	StateCompleted
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Event is an inbound occurrence from the realtime channel or a timer.
// Provider callback hooks are normalized into this tagged union at the
// boundary; transition logic only ever sees these types.
type Event interface {
	isEvent()
}

// Connected reports a successfully opened realtime session
type Connected struct {
	SessionID string
}

// Disconnected reports the realtime channel closing, either because the
// user asked for it or because the provider dropped the connection
type Disconnected struct {
	ByUser bool
	Reason string
}

// MessageReceived carries one conversation turn from the realtime channel
type MessageReceived struct {
	Source string // provider tag; "user" variants map to the user role
	Text   string
	At     time.Time
}

// Errored reports a connection-level failure
type Errored struct {
	Reason string
}

// InactivityElapsed fires when the inactivity timer runs out
type InactivityElapsed struct{}

func (Connected) isEvent()         {}
func (Disconnected) isEvent()      {}
func (MessageReceived) isEvent()   {}
func (Errored) isEvent()           {}
func (InactivityElapsed) isEvent() {}

// Effect is a side effect requested by a transition; the manager executes
// them after the state change has been applied
type Effect interface {
	isEffect()
}

// ShowToast surfaces a transient user-facing message
type ShowToast struct {
	Message string
	IsError bool
}

// RearmTimer restarts the inactivity countdown
type RearmTimer struct{}

// StopTimer cancels the inactivity countdown
type StopTimer struct{}

// PromptStillThere asks the user whether to continue or finish
type PromptStillThere struct{}

func (ShowToast) isEffect()        {}
func (RearmTimer) isEffect()       {}
func (StopTimer) isEffect()        {}
func (PromptStillThere) isEffect() {}

// Session is the conversation aggregate. The transcript is append-only and
// survives pause/resume; it is only reset when a new Session is created.
type Session struct {
	ID               string
	ConnectionState  ConnectionState
	Transcript       []types.ChatMessage
	LastActivity     time.Time
	ShowFinishButton bool
	AwaitingDecision bool

	everConnected bool
}

// NewSession returns a fresh session in the New state
func NewSession() Session {
	return Session{ConnectionState: StateNew}
}

// transition applies one event to the session and returns the next session
// value plus the side effects to execute. It performs no I/O.
func transition(s Session, ev Event) (Session, []Effect) {
	switch e := ev.(type) {
	case Connected:
		if s.ConnectionState != StateConnecting {
			return s, nil
		}
		s.ID = e.SessionID
		s.ConnectionState = StateConnected
		s.everConnected = true
		s.AwaitingDecision = false
		s.LastActivity = time.Now()
		return s, []Effect{RearmTimer{}, ShowToast{Message: "Connected to your interviewer"}}

	case Disconnected:
		if s.ConnectionState != StateConnected && s.ConnectionState != StateConnecting {
			return s, nil
		}
		s.ConnectionState = StatePaused
		s.ShowFinishButton = true
		s.AwaitingDecision = false
		if !e.ByUser {
			// An unexpected drop leaves a note in the transcript; a
			// user-initiated pause does not
			text := "Connection lost unexpectedly. Resume to continue the interview."
			if e.Reason != "" {
				text = fmt.Sprintf("Connection lost: %s. Resume to continue the interview.", e.Reason)
			}
			s.Transcript = appendMessage(s.Transcript, types.RoleSystem, text)
		}
		return s, []Effect{StopTimer{}}

	case MessageReceived:
		s.LastActivity = e.At
		if strings.TrimSpace(e.Text) == "" {
			return s, []Effect{RearmTimer{}}
		}
		role := types.RoleAssistant
		if isUserSource(e.Source) {
			role = types.RoleUser
		}
		s.Transcript = append(s.Transcript, types.ChatMessage{
			ID:        uuid.NewString(),
			Role:      role,
			Text:      e.Text,
			Timestamp: e.At,
		})
		return s, []Effect{RearmTimer{}}

	case Errored:
		effects := []Effect{ShowToast{Message: e.Reason, IsError: true}}
		if s.ConnectionState == StateConnecting {
			// Connection attempts may be retried; the transcript is untouched
			if s.everConnected {
				s.ConnectionState = StatePaused
			} else {
				s.ConnectionState = StateNew
			}
			effects = append(effects, StopTimer{})
		}
		return s, effects

	case InactivityElapsed:
		if s.ConnectionState != StateConnected {
			return s, nil
		}
		s.AwaitingDecision = true
		return s, []Effect{PromptStillThere{}}
	}
	return s, nil
}

// isUserSource reports whether a provider message tag identifies the
// user's own speech
func isUserSource(source string) bool {
	switch strings.ToLower(source) {
	case "user", "user_transcript", "user_transcription":
		return true
	}
	return false
}

func appendMessage(transcript []types.ChatMessage, role types.Role, text string) []types.ChatMessage {
	return append(transcript, types.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
}
