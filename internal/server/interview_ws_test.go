package server

import (
	"testing"
	"time"

	"resumelift/internal/session"
	"resumelift/internal/types"
)

func sessionWithTranscript(state session.ConnectionState, texts ...string) session.Session {
	s := session.NewSession()
	s.ConnectionState = state
	for i, text := range texts {
		s.Transcript = append(s.Transcript, types.ChatMessage{
			ID:        string(rune('a' + i)),
			Role:      types.RoleAssistant,
			Text:      text,
			Timestamp: time.Now(),
		})
	}
	return s
}

func TestNextFrameSendsOnlyNewMessages(t *testing.T) {
	snap := sessionWithTranscript(session.StateConnected, "hello", "tell me about your role")

	frame, cur, send := nextFrame(snap, nil, frameCursor{})
	if !send {
		t.Fatal("expected first diff to produce a frame")
	}
	if len(frame.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(frame.Messages))
	}
	if frame.ConnectionState != "connected" {
		t.Errorf("expected state connected, got %s", frame.ConnectionState)
	}

	// Nothing changed: no frame
	if _, _, send := nextFrame(snap, nil, cur); send {
		t.Error("expected no frame when nothing changed")
	}

	// One more transcript entry: only the new one goes out
	snap.Transcript = append(snap.Transcript, types.ChatMessage{ID: "c", Role: types.RoleUser, Text: "I led a team"})
	frame, cur, send = nextFrame(snap, nil, cur)
	if !send {
		t.Fatal("expected a frame for the new message")
	}
	if len(frame.Messages) != 1 || frame.Messages[0].Text != "I led a team" {
		t.Fatalf("expected only the new message, got %+v", frame.Messages)
	}
	if cur.sent != 3 {
		t.Errorf("expected cursor at 3, got %d", cur.sent)
	}
}

func TestNextFrameStateAndFlagChanges(t *testing.T) {
	snap := sessionWithTranscript(session.StateConnected, "hello")
	_, cur, _ := nextFrame(snap, nil, frameCursor{})

	snap.ConnectionState = session.StatePaused
	snap.ShowFinishButton = true
	frame, cur, send := nextFrame(snap, nil, cur)
	if !send {
		t.Fatal("expected a frame for the state change")
	}
	if frame.ConnectionState != "paused" || !frame.ShowFinishButton {
		t.Errorf("unexpected frame: %+v", frame)
	}
	if len(frame.Messages) != 0 {
		t.Errorf("expected no message replay on a state change, got %d", len(frame.Messages))
	}

	if _, _, send := nextFrame(snap, nil, cur); send {
		t.Error("expected no frame after the change was sent")
	}
}

func TestNextFrameNoticesForceFrame(t *testing.T) {
	snap := sessionWithTranscript(session.StateConnected, "hello")
	_, cur, _ := nextFrame(snap, nil, frameCursor{})

	notices := []Notice{{Message: "Connected to your interviewer"}}
	frame, _, send := nextFrame(snap, notices, cur)
	if !send {
		t.Fatal("expected a frame carrying the notices")
	}
	if len(frame.Notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(frame.Notices))
	}
}

func TestNextFrameResyncsAfterRestart(t *testing.T) {
	snap := sessionWithTranscript(session.StateConnected, "one", "two", "three")
	_, cur, _ := nextFrame(snap, nil, frameCursor{})

	// A restart swaps in a fresh session manager with an empty transcript
	fresh := sessionWithTranscript(session.StateNew, "welcome back")
	frame, cur, send := nextFrame(fresh, nil, cur)
	if !send {
		t.Fatal("expected a frame after restart")
	}
	if len(frame.Messages) != 1 || frame.Messages[0].Text != "welcome back" {
		t.Fatalf("expected full resync from the fresh transcript, got %+v", frame.Messages)
	}
	if cur.sent != 1 {
		t.Errorf("expected cursor reset to 1, got %d", cur.sent)
	}
}
