package session

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"resumelift/internal/types"
)

const (
	rollingHistoryTurns  = 8
	rollingHistoryLength = 150
	maxExcerpts          = 3
	excerptLength        = 150
)

// BuildResumeContext renders a compact natural-language summary of the
// parsed resume for the voice agent's context variables
func BuildResumeContext(parsed *types.ParsedResume) string {
	if parsed == nil {
		return ""
	}
	var b strings.Builder
	if len(parsed.Skills) > 0 {
		b.WriteString("Skills: " + strings.Join(parsed.Skills, ", ") + ". ")
	}
	if len(parsed.Experience) > 0 {
		entries := make([]string, 0, len(parsed.Experience))
		for _, exp := range parsed.Experience {
			entry := exp.Title
			if exp.Company != "" {
				entry += " at " + exp.Company
			}
			if exp.Dates != "" {
				entry += " (" + exp.Dates + ")"
			}
			entries = append(entries, entry)
		}
		b.WriteString("Experience: " + strings.Join(entries, "; ") + ". ")
	}
	if len(parsed.Education) > 0 {
		entries := make([]string, 0, len(parsed.Education))
		for _, edu := range parsed.Education {
			entry := edu.Degree
			if edu.Institution != "" {
				entry += ", " + edu.Institution
			}
			entries = append(entries, entry)
		}
		b.WriteString("Education: " + strings.Join(entries, "; ") + ".")
	}
	return strings.TrimSpace(b.String())
}

// buildRollingHistory summarizes prior conversation turns for the context
// variables sent on connect: the most recent non-system turns, capped and
// truncated so the payload stays small
func buildRollingHistory(transcript []types.ChatMessage) string {
	turns := make([]string, 0, rollingHistoryTurns)
	for i := len(transcript) - 1; i >= 0 && len(turns) < rollingHistoryTurns; i-- {
		msg := transcript[i]
		if msg.Role == types.RoleSystem {
			continue
		}
		label := "Candidate"
		if msg.Role == types.RoleAssistant {
			label = "Interviewer"
		}
		turns = append(turns, label+": "+truncate(msg.Text, rollingHistoryLength))
	}
	// Reverse back into chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return strings.Join(turns, "\n")
}

// buildFinishSummary produces the synthetic system message appended when
// the session completes: turn counts, elapsed duration, and excerpted key
// topics and recommendations detected by keyword matching over assistant
// messages. The keyword heuristic is intentionally simple and its output
// feeds the rewrite prompt, so the matching terms are fixed.
func buildFinishSummary(transcript []types.ChatMessage, elapsed time.Duration) string {
	var userTurns, assistantTurns int
	var keyTopics, recommendations []string

	for _, msg := range transcript {
		switch msg.Role {
		case types.RoleUser:
			userTurns++
		case types.RoleAssistant:
			assistantTurns++
			lower := strings.ToLower(msg.Text)
			if len(recommendations) < maxExcerpts &&
				(strings.Contains(lower, "recommend") || strings.Contains(lower, "suggest") || strings.Contains(lower, "should")) {
				recommendations = append(recommendations, truncate(msg.Text, excerptLength))
			}
			if len(keyTopics) < maxExcerpts &&
				(strings.Contains(lower, "strength") || strings.Contains(lower, "opportunity") || strings.Contains(lower, "improve")) {
				keyTopics = append(keyTopics, truncate(msg.Text, excerptLength))
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Interview completed: %d candidate turns, %d interviewer turns, %s elapsed.",
		userTurns, assistantTurns, elapsed.Round(time.Second))
	if len(keyTopics) > 0 {
		b.WriteString("\nKey topics:\n- " + strings.Join(keyTopics, "\n- "))
	}
	if len(recommendations) > 0 {
		b.WriteString("\nRecommendations:\n- " + strings.Join(recommendations, "\n- "))
	}
	return b.String()
}

// truncate caps s at max bytes without splitting a multi-byte rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
