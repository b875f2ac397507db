package workflow

import (
	"resumelift/internal/types"
)

// State is the controller's aggregate root: one instance per user session,
// held in memory only. Later-step data is only populated once the producing
// step has completed.
type State struct {
	Step Step `json:"step"`

	// Uploaded resume, immutable once set, cleared only on restart
	ResumeDataURI  string `json:"resumeDataUri,omitempty"`
	ResumeFileName string `json:"resumeFileName,omitempty"`
	ResumeFileSize int64  `json:"resumeFileSize,omitempty"`

	ParsedResume *types.ParsedResume `json:"parsedResume,omitempty"`
	ScoreResult  *types.ScoreResult  `json:"scoreResult,omitempty"`

	// Frozen copy of the interview transcript, set when the interview finishes
	ChatTranscript []types.ChatMessage `json:"chatTranscript,omitempty"`

	RewrittenResume string `json:"rewrittenResume,omitempty"`

	User             *types.User `json:"user,omitempty"`
	PaymentCompleted bool        `json:"paymentCompleted"`
	DiscountCode     string      `json:"discountCode,omitempty"`

	// Last failure message; cleared at the start of every new attempt
	Error string `json:"error,omitempty"`

	// Cosmetic loading indicator state
	Loading        bool   `json:"loading"`
	LoadingMessage string `json:"loadingMessage,omitempty"`
	Progress       int    `json:"progress"`
}

func newState() State {
	return State{Step: StepUpload}
}

// clone returns a copy safe to hand outside the controller's lock. Slices
// are copied; the pointer fields reference read-only results and are shared.
func (s State) clone() State {
	out := s
	if s.ChatTranscript != nil {
		out.ChatTranscript = make([]types.ChatMessage, len(s.ChatTranscript))
		copy(out.ChatTranscript, s.ChatTranscript)
	}
	return out
}
