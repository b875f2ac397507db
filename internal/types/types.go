package types

import "time"

// ParseResumeInput represents the input for parsing an uploaded resume
type ParseResumeInput struct {
	ResumeDataURI string `json:"resumeDataUri"`
}

// ExperienceEntry represents one position extracted from a resume
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Dates       string `json:"dates"`
	Description string `json:"description"`
}

// EducationEntry represents one education record extracted from a resume
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Dates       string `json:"dates"`
}

// ParsedResume represents the structured output from parsing a resume
type ParsedResume struct {
	Skills     []string          `json:"skills"`
	Experience []ExperienceEntry `json:"experience"`
	Education  []EducationEntry  `json:"education"`
}

// ScoreResumeInput represents the input for scoring a resume
type ScoreResumeInput struct {
	ResumeDataURI string `json:"resumeDataUri"`
}

// CategoryScores holds the seven named scoring categories, each 0-100
type CategoryScores struct {
	Content      int `json:"content"`
	Formatting   int `json:"formatting"`
	Keywords     int `json:"keywords"`
	Experience   int `json:"experience"`
	Skills       int `json:"skills"`
	Education    int `json:"education"`
	Achievements int `json:"achievements"`
}

// ScoreResult represents the comprehensive output from scoring a resume
type ScoreResult struct {
	OverallScore      int            `json:"overallScore"`      // 0-100
	CategoryScores    CategoryScores `json:"categoryScores"`    // Per-category breakdown
	Strengths         []string       `json:"strengths"`         // What the resume does well
	Improvements      []string       `json:"improvements"`      // What to improve
	ATSCompatibility  int            `json:"atsCompatibility"`  // 0-100
	Recommendations   []string       `json:"recommendations"`   // Actionable recommendations
	IndustryAlignment string         `json:"industryAlignment"` // Narrative alignment assessment
}

// RewriteResumeInput represents the input for rewriting a resume
type RewriteResumeInput struct {
	ResumeDataURI    string `json:"resumeDataUri"`
	InterviewSummary string `json:"interviewSummary"`
}

// RewriteResumeOutput represents the output from rewriting a resume
type RewriteResumeOutput struct {
	RewrittenResume string `json:"rewrittenResume"`
}

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a single normalized conversation turn. Provider-specific
// inbound shapes are converted to this type at the boundary and never stored.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// User is an authenticated identity returned by the identity provider
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// DiscountValidation is the result of checking a user-entered discount code
type DiscountValidation struct {
	Valid            bool   `json:"valid"`
	Percentage       int    `json:"percentage,omitempty"`
	DiscountedAmount int64  `json:"discountedAmount,omitempty"`
	Error            string `json:"error,omitempty"`
}

// PaymentIntent holds the client-side confirmation handle for a created intent
type PaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
}
