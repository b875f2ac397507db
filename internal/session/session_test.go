package session

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"resumelift/internal/types"
)

func TestTransitionMessageNormalization(t *testing.T) {
	tests := []struct {
		name         string
		source       string
		text         string
		expectAppend bool
		expectedRole types.Role
	}{
		{
			name:         "user transcript tag maps to user",
			source:       "user_transcript",
			text:         "I built the billing system",
			expectAppend: true,
			expectedRole: types.RoleUser,
		},
		{
			name:         "plain user tag maps to user",
			source:       "user",
			text:         "hello",
			expectAppend: true,
			expectedRole: types.RoleUser,
		},
		{
			name:         "agent tag maps to assistant",
			source:       "agent_response",
			text:         "Tell me more",
			expectAppend: true,
			expectedRole: types.RoleAssistant,
		},
		{
			name:         "empty text is dropped",
			source:       "user",
			text:         "",
			expectAppend: false,
		},
		{
			name:         "whitespace only text is dropped",
			source:       "agent_response",
			text:         "   \n\t ",
			expectAppend: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			s.ConnectionState = StateConnected

			next, effects := transition(s, MessageReceived{Source: tt.source, Text: tt.text, At: time.Now()})

			if tt.expectAppend {
				if len(next.Transcript) != 1 {
					t.Fatalf("Expected 1 transcript entry, got %d", len(next.Transcript))
				}
				if next.Transcript[0].Role != tt.expectedRole {
					t.Errorf("Expected role %s, got %s", tt.expectedRole, next.Transcript[0].Role)
				}
			} else if len(next.Transcript) != 0 {
				t.Errorf("Expected dropped message, got %d entries", len(next.Transcript))
			}

			// Any message event resets the inactivity timer
			if !hasEffect[RearmTimer](effects) {
				t.Error("Expected timer rearm effect")
			}
		})
	}
}

func TestTransitionUnexpectedDisconnect(t *testing.T) {
	s := NewSession()
	s.ConnectionState = StateConnected

	next, effects := transition(s, Disconnected{ByUser: false, Reason: "network dropped"})

	if next.ConnectionState != StatePaused {
		t.Errorf("Expected paused state, got %s", next.ConnectionState)
	}
	if !next.ShowFinishButton {
		t.Error("Expected finish button to be shown")
	}
	if len(next.Transcript) != 1 || next.Transcript[0].Role != types.RoleSystem {
		t.Fatalf("Expected one system message describing the disconnect, got %+v", next.Transcript)
	}
	if !strings.Contains(next.Transcript[0].Text, "network dropped") {
		t.Errorf("Expected disconnect reason in message, got %q", next.Transcript[0].Text)
	}
	if !hasEffect[StopTimer](effects) {
		t.Error("Expected timer stop effect")
	}
}

func TestTransitionUserPauseLeavesNoSystemMessage(t *testing.T) {
	s := NewSession()
	s.ConnectionState = StateConnected

	next, _ := transition(s, Disconnected{ByUser: true})

	if next.ConnectionState != StatePaused {
		t.Errorf("Expected paused state, got %s", next.ConnectionState)
	}
	if len(next.Transcript) != 0 {
		t.Errorf("Expected no transcript entry for a user pause, got %d", len(next.Transcript))
	}
}

func TestTransitionErrorWhileConnecting(t *testing.T) {
	t.Run("before first connect returns to new", func(t *testing.T) {
		s := NewSession()
		s.ConnectionState = StateConnecting

		next, effects := transition(s, Errored{Reason: "handshake failed"})
		if next.ConnectionState != StateNew {
			t.Errorf("Expected new state, got %s", next.ConnectionState)
		}
		if !hasEffect[ShowToast](effects) {
			t.Error("Expected error toast effect")
		}
	})

	t.Run("after a previous connect returns to paused", func(t *testing.T) {
		s := NewSession()
		s.ConnectionState = StateConnecting
		s.everConnected = true

		next, _ := transition(s, Errored{Reason: "handshake failed"})
		if next.ConnectionState != StatePaused {
			t.Errorf("Expected paused state, got %s", next.ConnectionState)
		}
	})
}

func TestTransitionInactivity(t *testing.T) {
	t.Run("while connected raises the prompt", func(t *testing.T) {
		s := NewSession()
		s.ConnectionState = StateConnected

		next, effects := transition(s, InactivityElapsed{})
		if !next.AwaitingDecision {
			t.Error("Expected awaiting decision flag")
		}
		if next.ConnectionState != StateConnected {
			t.Errorf("Expected state unchanged, got %s", next.ConnectionState)
		}
		if !hasEffect[PromptStillThere](effects) {
			t.Error("Expected prompt effect")
		}
	})

	t.Run("while paused is ignored", func(t *testing.T) {
		s := NewSession()
		s.ConnectionState = StatePaused

		next, effects := transition(s, InactivityElapsed{})
		if next.AwaitingDecision {
			t.Error("Expected no decision prompt while paused")
		}
		if len(effects) != 0 {
			t.Errorf("Expected no effects, got %d", len(effects))
		}
	})
}

func TestBuildFinishSummary(t *testing.T) {
	transcript := []types.ChatMessage{
		{Role: types.RoleUser, Text: "I led a team of five"},
		{Role: types.RoleAssistant, Text: "I recommend quantifying that impact"},
		{Role: types.RoleAssistant, Text: "Your leadership is a real strength"},
		{Role: types.RoleAssistant, Text: "You should mention the migration outcome"},
		{Role: types.RoleSystem, Text: "connection notice"},
	}

	summary := buildFinishSummary(transcript, 95*time.Second)

	if !strings.Contains(summary, "1 candidate turns") {
		t.Errorf("Expected candidate turn count, got %q", summary)
	}
	if !strings.Contains(summary, "3 interviewer turns") {
		t.Errorf("Expected interviewer turn count, got %q", summary)
	}
	if !strings.Contains(summary, "1m35s") {
		t.Errorf("Expected elapsed duration, got %q", summary)
	}
	if !strings.Contains(summary, "I recommend quantifying that impact") {
		t.Errorf("Expected recommendation excerpt, got %q", summary)
	}
	if !strings.Contains(summary, "Your leadership is a real strength") {
		t.Errorf("Expected key topic excerpt, got %q", summary)
	}
}

func TestBuildFinishSummaryCapsExcerpts(t *testing.T) {
	var transcript []types.ChatMessage
	for i := 0; i < 6; i++ {
		transcript = append(transcript, types.ChatMessage{
			Role: types.RoleAssistant,
			Text: "I recommend option " + string(rune('A'+i)),
		})
	}

	summary := buildFinishSummary(transcript, time.Minute)
	if got := strings.Count(summary, "I recommend option"); got != 3 {
		t.Errorf("Expected at most 3 recommendation excerpts, got %d", got)
	}
}

func TestBuildRollingHistory(t *testing.T) {
	var transcript []types.ChatMessage
	transcript = append(transcript, types.ChatMessage{Role: types.RoleSystem, Text: "ignored"})
	for i := 0; i < 10; i++ {
		transcript = append(transcript, types.ChatMessage{
			Role: types.RoleUser,
			Text: "turn " + string(rune('0'+i)),
		})
	}
	transcript = append(transcript, types.ChatMessage{
		Role: types.RoleAssistant,
		Text: strings.Repeat("x", 200),
	})

	history := buildRollingHistory(transcript)
	lines := strings.Split(history, "\n")
	if len(lines) != 8 {
		t.Fatalf("Expected history capped to 8 turns, got %d", len(lines))
	}
	if strings.Contains(history, "ignored") {
		t.Error("Expected system messages excluded from history")
	}

	last := lines[len(lines)-1]
	if len(last) > len("Interviewer: ")+150+len("...") {
		t.Errorf("Expected long turns truncated, got %d chars", len(last))
	}
	if !strings.HasSuffix(last, "...") {
		t.Error("Expected truncation marker on the long turn")
	}
	// Oldest retained turn comes first
	if !strings.Contains(lines[0], "turn 3") {
		t.Errorf("Expected chronological order starting at the oldest retained turn, got %q", lines[0])
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// A multi-byte rune straddling the cap must not be split
	s := strings.Repeat("a", 149) + "é"
	got := truncate(s, 150)
	if !utf8.ValidString(got) {
		t.Fatalf("Expected valid UTF-8, got bytes % x", got)
	}
	if got != strings.Repeat("a", 149)+"..." {
		t.Errorf("Expected the straddling rune dropped, got %q", got)
	}

	history := buildRollingHistory([]types.ChatMessage{{
		Role: types.RoleUser,
		Text: strings.Repeat("é", 200),
	}})
	if !utf8.ValidString(history) {
		t.Errorf("Expected valid UTF-8 history, got bytes % x", history)
	}

	// Short strings and exact fits pass through untouched
	if got := truncate("héllo", 150); got != "héllo" {
		t.Errorf("Expected short string unchanged, got %q", got)
	}
}

func TestBuildResumeContext(t *testing.T) {
	parsed := &types.ParsedResume{
		Skills: []string{"Go", "PostgreSQL"},
		Experience: []types.ExperienceEntry{
			{Title: "Backend Engineer", Company: "Acme", Dates: "2020-2024"},
		},
		Education: []types.EducationEntry{
			{Institution: "State University", Degree: "BSc Computer Science"},
		},
	}

	ctx := BuildResumeContext(parsed)
	for _, want := range []string{"Go, PostgreSQL", "Backend Engineer at Acme (2020-2024)", "BSc Computer Science, State University"} {
		if !strings.Contains(ctx, want) {
			t.Errorf("Expected %q in resume context, got %q", want, ctx)
		}
	}

	if BuildResumeContext(nil) != "" {
		t.Error("Expected empty context for nil resume")
	}
}

func hasEffect[T Effect](effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(T); ok {
			return true
		}
	}
	return false
}
