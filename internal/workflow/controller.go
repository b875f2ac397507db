package workflow

import (
	"context"
	"fmt"
	"sync"

	"resumelift/internal/errors"
	"resumelift/internal/types"
)

// AIClient is the narrow AI collaborator contract the controller depends on.
// The ai package's provider is adapted to this interface by the caller.
type AIClient interface {
	ParseResume(ctx context.Context, input types.ParseResumeInput) (types.ParsedResume, error)
	ScoreResume(ctx context.Context, input types.ScoreResumeInput) (types.ScoreResult, error)
	RewriteResume(ctx context.Context, input types.RewriteResumeInput) (types.RewriteResumeOutput, error)
}

// IdentityClient authenticates the user with the identity provider
type IdentityClient interface {
	SignIn(ctx context.Context) (types.User, error)
}

// PaymentClient validates discount codes and creates payment intents
type PaymentClient interface {
	ValidateDiscountCode(code string) (types.DiscountValidation, error)
	CreateIntent(ctx context.Context, amountCents int64, discountCode string) (types.PaymentIntent, error)
}

// SessionTeardown lets the controller tear down an active interview session
// on restart. Implementations must be idempotent when no session exists.
type SessionTeardown interface {
	Teardown()
}

// Notifier receives user-facing success and failure notifications
type Notifier interface {
	Success(message string)
	Failure(message string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Failure(string) {}

type nopTeardown struct{}

func (nopTeardown) Teardown() {}

// Collaborators bundles the external services the controller drives
type Collaborators struct {
	AI       AIClient
	Identity IdentityClient
	Payments PaymentClient
	Sessions SessionTeardown
}

// Config carries the feature flags and payment amount the controller needs.
// It is passed in explicitly at construction rather than read from ambient
// configuration.
type Config struct {
	PaymentEnabled bool
	VoiceEnabled   bool
	AgentID        string
	AmountCents    int64
}

// Controller sequences the end-to-end resume workflow and owns all
// cross-step state. All mutations are serialized through its mutex; the
// lock is never held across a collaborator call, so snapshots stay cheap
// while a call is in flight.
type Controller struct {
	mu       sync.Mutex
	state    State
	cfg      Config
	collab   Collaborators
	notifier Notifier
	logger   *errors.Logger
}

// NewController creates a workflow controller in the Upload step
func NewController(cfg Config, collab Collaborators, notifier Notifier, logger *errors.Logger) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if collab.Sessions == nil {
		collab.Sessions = nopTeardown{}
	}
	return &Controller{
		state:    newState(),
		cfg:      cfg,
		collab:   collab,
		notifier: notifier,
		logger:   logger,
	}
}

// Snapshot returns a copy of the current workflow state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Upload accepts the resume file as a base64 data URI and advances to Auth
func (c *Controller) Upload(dataURI, fileName string, size int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Step != StepUpload {
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot upload a resume during the %s step", c.state.Step), nil)
	}
	if dataURI == "" {
		return errors.NewValidationError(errors.ErrCodeMissingResumeData,
			"No resume data provided", nil)
	}

	c.state.Error = ""
	c.state.ResumeDataURI = dataURI
	c.state.ResumeFileName = fileName
	c.state.ResumeFileSize = size
	c.state.Step = StepAuth

	c.logger.Info("Resume uploaded", "file_name", fileName, "file_size", size)
	return nil
}

// SignIn authenticates the user via the identity provider and advances to
// Parse. The resume must already be uploaded.
func (c *Controller) SignIn(ctx context.Context) error {
	if err := c.beginCall(StepAuth, "Signing you in...", false); err != nil {
		return err
	}

	user, err := c.collab.Identity.SignIn(ctx)
	if err != nil {
		return c.fail(StepAuth, "Sign-in failed", err)
	}

	c.mu.Lock()
	c.state.User = &user
	c.state.Step = StepParse
	c.endLoadingLocked()
	c.mu.Unlock()

	c.logger.Info("User signed in", "user", user.Name)
	c.notifier.Success(fmt.Sprintf("Welcome, %s!", user.Name))
	return nil
}

// RunParse parses the uploaded resume and, on success, automatically chains
// the scoring call with no user action in between. A parse failure routes
// back to Auth: the resume is already uploaded, so only sign-in state is
// safe to assume. A score failure stays on Score with the parse result
// intact; calling RunParse again from Score re-runs only the scoring call.
func (c *Controller) RunParse(ctx context.Context) error {
	if c.currentStep() == StepScore {
		if err := c.beginCall(StepScore, "Scoring your resume...", true); err != nil {
			return err
		}
		return c.runScore(ctx, c.resumeDataURI())
	}

	if err := c.beginCall(StepParse, "Analyzing your resume...", true); err != nil {
		return err
	}
	dataURI := c.resumeDataURI()

	parsed, err := c.collab.AI.ParseResume(ctx, types.ParseResumeInput{ResumeDataURI: dataURI})
	if err != nil {
		return c.fail(StepAuth, "Resume parsing failed", err)
	}

	c.mu.Lock()
	c.state.ParsedResume = &parsed
	c.state.Step = StepScore
	c.state.LoadingMessage = "Scoring your resume..."
	c.state.Progress = 0
	c.mu.Unlock()

	c.logger.Info("Resume parsed",
		"skills", len(parsed.Skills),
		"experience_entries", len(parsed.Experience),
		"education_entries", len(parsed.Education))

	return c.runScore(ctx, dataURI)
}

func (c *Controller) runScore(ctx context.Context, dataURI string) error {
	score, err := c.collab.AI.ScoreResume(ctx, types.ScoreResumeInput{ResumeDataURI: dataURI})
	if err != nil {
		return c.fail(StepScore, "Resume scoring failed", err)
	}

	next := StepPayment
	if !c.cfg.PaymentEnabled {
		next = StepInterview
	}

	c.mu.Lock()
	c.state.ScoreResult = &score
	c.state.Step = next
	c.endLoadingLocked()
	c.mu.Unlock()

	c.logger.Info("Resume scored", "overall_score", score.OverallScore)
	c.notifier.Success(fmt.Sprintf("Your resume scored %d/100", score.OverallScore))
	return nil
}

// ApplyDiscount validates a user-entered discount code against the payment
// provider and records it for intent creation if valid
func (c *Controller) ApplyDiscount(code string) (types.DiscountValidation, error) {
	c.mu.Lock()
	if c.state.Step != StepPayment {
		c.mu.Unlock()
		return types.DiscountValidation{}, errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot apply a discount during the %s step", c.state.Step), nil)
	}
	c.mu.Unlock()

	validation, err := c.collab.Payments.ValidateDiscountCode(code)
	if err != nil {
		return validation, err
	}
	if validation.Valid {
		c.mu.Lock()
		c.state.DiscountCode = code
		c.mu.Unlock()
	}
	return validation, nil
}

// CreatePaymentIntent creates a payment intent for the configured amount,
// applying any previously validated discount code
func (c *Controller) CreatePaymentIntent(ctx context.Context) (types.PaymentIntent, error) {
	if err := c.beginCall(StepPayment, "Preparing payment...", false); err != nil {
		return types.PaymentIntent{}, err
	}

	c.mu.Lock()
	code := c.state.DiscountCode
	c.mu.Unlock()

	intent, err := c.collab.Payments.CreateIntent(ctx, c.cfg.AmountCents, code)
	if err != nil {
		return types.PaymentIntent{}, c.fail(StepPayment, "Payment setup failed", err)
	}

	c.mu.Lock()
	c.endLoadingLocked()
	c.mu.Unlock()
	return intent, nil
}

// ConfirmPayment records a completed payment and advances to Interview
func (c *Controller) ConfirmPayment() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Step != StepPayment {
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot confirm payment during the %s step", c.state.Step), nil)
	}

	c.state.Error = ""
	c.state.PaymentCompleted = true
	c.state.Step = StepInterview

	c.logger.Info("Payment confirmed")
	c.notifier.Success("Payment received")
	return nil
}

// BeginInterview verifies the interview step can start. Missing voice
// configuration is a static configuration error, not a retryable failure.
func (c *Controller) BeginInterview() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Step != StepInterview {
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot start an interview during the %s step", c.state.Step), nil)
	}
	if !c.cfg.VoiceEnabled || c.cfg.AgentID == "" {
		return errors.NewConfigError(errors.ErrCodeNotConfigured,
			"Voice interview is not configured. Set the voice agent ID to enable interviews.", nil)
	}
	c.state.Error = ""
	return nil
}

// FinishInterview freezes the interview transcript, advances to Rewrite,
// and runs the rewrite call using the rendered interview summary
func (c *Controller) FinishInterview(ctx context.Context, transcript []types.ChatMessage) error {
	c.mu.Lock()
	if c.state.Step != StepInterview {
		c.mu.Unlock()
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot finish an interview during the %s step", c.state.Step), nil)
	}
	frozen := make([]types.ChatMessage, len(transcript))
	copy(frozen, transcript)
	c.state.ChatTranscript = frozen
	c.state.Step = StepRewrite
	c.mu.Unlock()

	c.logger.Info("Interview finished", "transcript_messages", len(frozen))
	return c.runRewrite(ctx)
}

// RetryRewrite re-runs the rewrite call after a failure, reusing the frozen
// transcript. The workflow stays on Rewrite across failures.
func (c *Controller) RetryRewrite(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Step != StepRewrite {
		c.mu.Unlock()
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot retry the rewrite during the %s step", c.state.Step), nil)
	}
	c.mu.Unlock()
	return c.runRewrite(ctx)
}

func (c *Controller) runRewrite(ctx context.Context) error {
	if err := c.beginCall(StepRewrite, "Rewriting your resume...", true); err != nil {
		return err
	}

	c.mu.Lock()
	dataURI := c.state.ResumeDataURI
	summary := RenderInterviewSummary(c.state.ChatTranscript)
	c.mu.Unlock()

	result, err := c.collab.AI.RewriteResume(ctx, types.RewriteResumeInput{
		ResumeDataURI:    dataURI,
		InterviewSummary: summary,
	})
	if err != nil {
		return c.fail(StepRewrite, "Resume rewriting failed", err)
	}

	c.mu.Lock()
	c.state.RewrittenResume = result.RewrittenResume
	c.state.Step = StepReview
	c.endLoadingLocked()
	c.mu.Unlock()

	c.logger.Info("Resume rewritten", "length", len(result.RewrittenResume))
	c.notifier.Success("Your rewritten resume is ready")
	return nil
}

// UpdateRewrittenResume replaces the working copy of the rewritten resume
// with the user's edits
func (c *Controller) UpdateRewrittenResume(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Step != StepReview {
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Cannot edit the rewritten resume during the %s step", c.state.Step), nil)
	}
	c.state.RewrittenResume = text
	return nil
}

// StartOver resets every field to its initial value, returns to Upload, and
// tears down any active interview session. Safe to call from any step and
// idempotent when repeated.
func (c *Controller) StartOver() {
	c.mu.Lock()
	c.state = newState()
	c.mu.Unlock()

	c.collab.Sessions.Teardown()
	c.logger.Info("Workflow restarted")
}

// beginCall is the shared entry guard for collaborator calls: it verifies
// the expected step, rejects programmatic re-entry while a call is already
// in flight, optionally requires resume data, clears the previous error,
// and enters the loading sub-state.
func (c *Controller) beginCall(expected Step, loadingMessage string, needsResume bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Step != expected {
		return errors.NewValidationError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("Expected the %s step, currently on %s", expected, c.state.Step), nil)
	}
	if c.state.Loading {
		return errors.NewValidationError(errors.ErrCodeOperationInFlight,
			"Another operation is already in progress", nil)
	}
	if needsResume && c.state.ResumeDataURI == "" {
		c.state.Step = StepUpload
		c.state.Error = "No resume data found. Please upload your resume again."
		return errors.NewValidationError(errors.ErrCodeMissingResumeData,
			"No resume data found", nil)
	}

	c.state.Error = ""
	c.state.Loading = true
	c.state.LoadingMessage = loadingMessage
	c.state.Progress = 0
	return nil
}

func (c *Controller) endLoadingLocked() {
	c.state.Loading = false
	c.state.LoadingMessage = ""
	c.state.Progress = 100
}

// fail records the collaborator failure with a stage-specific prefix, leaves
// loading, moves to the nearest retryable step, and notifies the user
func (c *Controller) fail(backTo Step, prefix string, err error) error {
	message := fmt.Sprintf("%s: %s", prefix, err.Error())

	c.mu.Lock()
	c.state.Error = message
	c.state.Step = backTo
	c.endLoadingLocked()
	c.mu.Unlock()

	c.logger.LogError(err, prefix, "retry_step", backTo.String())
	c.notifier.Failure(message)
	return err
}

func (c *Controller) resumeDataURI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ResumeDataURI
}

func (c *Controller) currentStep() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Step
}
