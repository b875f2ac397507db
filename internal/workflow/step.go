package workflow

// Step is a named stage of the end-to-end resume improvement flow.
// Exactly one step is active at a time.
type Step int

const (
	StepUpload Step = iota
	StepAuth
	StepParse
	StepScore
	StepPayment
	StepInterview
	StepRewrite
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepAuth:
		return "auth"
	case StepParse:
		return "parse"
	case StepScore:
		return "score"
	case StepPayment:
		return "payment"
	case StepInterview:
		return "interview"
	case StepRewrite:
		return "rewrite"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// StepInfo carries display metadata for a workflow step
type StepInfo struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

var stepInfoTable = map[Step]StepInfo{
	StepUpload:    {Title: "Upload Resume", Icon: "upload"},
	StepAuth:      {Title: "Sign In", Icon: "user"},
	StepParse:     {Title: "Analyzing Resume", Icon: "search"},
	StepScore:     {Title: "Resume Score", Icon: "chart"},
	StepPayment:   {Title: "Payment", Icon: "credit-card"},
	StepInterview: {Title: "AI Interview", Icon: "microphone"},
	StepRewrite:   {Title: "Rewriting Resume", Icon: "pencil"},
	StepReview:    {Title: "Review & Download", Icon: "document"},
}

// Info returns the display metadata for the step
func (s Step) Info() StepInfo {
	if info, ok := stepInfoTable[s]; ok {
		return info
	}
	return StepInfo{Title: "Unknown", Icon: "question"}
}
