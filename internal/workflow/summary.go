package workflow

import (
	"strings"

	"resumelift/internal/types"
)

// RenderInterviewSummary turns an interview transcript into the free-text
// summary passed to the rewrite operation. System messages are excluded;
// user and assistant turns render as "User: ..." and "AI: ..." lines joined
// by a blank line.
func RenderInterviewSummary(transcript []types.ChatMessage) string {
	lines := make([]string, 0, len(transcript))
	for _, msg := range transcript {
		switch msg.Role {
		case types.RoleUser:
			lines = append(lines, "User: "+msg.Text)
		case types.RoleAssistant:
			lines = append(lines, "AI: "+msg.Text)
		}
	}
	return strings.Join(lines, "\n\n")
}
