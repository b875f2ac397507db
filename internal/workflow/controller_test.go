package workflow

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"resumelift/internal/errors"
	"resumelift/internal/types"
)

const testDataURI = "data:application/pdf;base64,JVBERi0xLjQ="

type fakeAI struct {
	parseErr   error
	scoreErr   error
	rewriteErr error

	parsed    types.ParsedResume
	score     types.ScoreResult
	rewritten string

	parseCalls   atomic.Int32
	scoreCalls   atomic.Int32
	rewriteCalls atomic.Int32

	// When set, the scorer signals scoreStarted and blocks until
	// scoreRelease is closed
	scoreStarted chan struct{}
	scoreRelease chan struct{}
}

func (f *fakeAI) ParseResume(_ context.Context, _ types.ParseResumeInput) (types.ParsedResume, error) {
	f.parseCalls.Add(1)
	if f.parseErr != nil {
		return types.ParsedResume{}, f.parseErr
	}
	return f.parsed, nil
}

func (f *fakeAI) ScoreResume(_ context.Context, _ types.ScoreResumeInput) (types.ScoreResult, error) {
	f.scoreCalls.Add(1)
	if f.scoreStarted != nil {
		close(f.scoreStarted)
		<-f.scoreRelease
	}
	if f.scoreErr != nil {
		return types.ScoreResult{}, f.scoreErr
	}
	return f.score, nil
}

func (f *fakeAI) RewriteResume(_ context.Context, _ types.RewriteResumeInput) (types.RewriteResumeOutput, error) {
	f.rewriteCalls.Add(1)
	if f.rewriteErr != nil {
		return types.RewriteResumeOutput{}, f.rewriteErr
	}
	return types.RewriteResumeOutput{RewrittenResume: f.rewritten}, nil
}

type fakeIdentity struct {
	err error
}

func (f *fakeIdentity) SignIn(_ context.Context) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	return types.User{ID: "u-1", Name: "Test User"}, nil
}

type fakePayments struct{}

func (fakePayments) ValidateDiscountCode(code string) (types.DiscountValidation, error) {
	if code == "LAUNCH50" {
		return types.DiscountValidation{Valid: true, Percentage: 50, DiscountedAmount: 250}, nil
	}
	return types.DiscountValidation{Valid: false, Error: "Invalid discount code"}, nil
}

func (fakePayments) CreateIntent(_ context.Context, amountCents int64, _ string) (types.PaymentIntent, error) {
	return types.PaymentIntent{ID: "pi_test", ClientSecret: "pi_test_secret", Amount: amountCents}, nil
}

type fakeSessions struct {
	teardowns atomic.Int32
}

func (f *fakeSessions) Teardown() {
	f.teardowns.Add(1)
}

func newTestController(t *testing.T, cfg Config, ai *fakeAI, sessions *fakeSessions) *Controller {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if sessions == nil {
		sessions = &fakeSessions{}
	}
	return NewController(cfg, Collaborators{
		AI:       ai,
		Identity: &fakeIdentity{},
		Payments: fakePayments{},
		Sessions: sessions,
	}, nil, logger)
}

func defaultConfig() Config {
	return Config{
		PaymentEnabled: true,
		VoiceEnabled:   true,
		AgentID:        "agent-test",
		AmountCents:    500,
	}
}

func happyAI() *fakeAI {
	return &fakeAI{
		parsed: types.ParsedResume{
			Skills:     []string{"Go", "SQL"},
			Experience: []types.ExperienceEntry{{Title: "Engineer", Company: "Acme"}},
		},
		score:     types.ScoreResult{OverallScore: 72},
		rewritten: "# Jane Doe\n\nSenior Engineer",
	}
}

func driveToReview(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}
	if err := c.ConfirmPayment(); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if err := c.BeginInterview(); err != nil {
		t.Fatalf("BeginInterview failed: %v", err)
	}
	transcript := []types.ChatMessage{
		{Role: types.RoleUser, Text: "I led the migration project"},
		{Role: types.RoleAssistant, Text: "Tell me more about the outcome"},
	}
	if err := c.FinishInterview(ctx, transcript); err != nil {
		t.Fatalf("FinishInterview failed: %v", err)
	}
}

func TestStepMonotonicityUnderSuccess(t *testing.T) {
	c := newTestController(t, defaultConfig(), happyAI(), nil)
	ctx := context.Background()

	visited := []Step{c.Snapshot().Step}
	record := func() {
		s := c.Snapshot().Step
		if visited[len(visited)-1] != s {
			visited = append(visited, s)
		}
	}

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	record()
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	record()
	// Parse and Score complete within one call; Score is observed by the
	// blocking-scorer test below
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}
	record()
	if err := c.ConfirmPayment(); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	record()
	if err := c.FinishInterview(ctx, nil); err != nil {
		t.Fatalf("FinishInterview failed: %v", err)
	}
	record()

	expected := []Step{StepUpload, StepAuth, StepParse, StepPayment, StepInterview, StepReview}
	if !reflect.DeepEqual(visited, expected) {
		t.Errorf("Expected step order %v, got %v", expected, visited)
	}

	seen := make(map[Step]int)
	for _, s := range visited {
		seen[s]++
		if seen[s] > 1 {
			t.Errorf("Step %s visited more than once", s)
		}
	}
}

func TestIdempotentStartOver(t *testing.T) {
	sessions := &fakeSessions{}
	c := newTestController(t, defaultConfig(), happyAI(), sessions)
	driveToReview(t, c)

	before := c.Snapshot()
	if before.Step != StepReview {
		t.Fatalf("Expected to reach review, got %s", before.Step)
	}
	if before.RewrittenResume == "" {
		t.Fatal("Expected non-empty rewritten resume before restart")
	}

	c.StartOver()
	first := c.Snapshot()

	if first.Step != StepUpload {
		t.Errorf("Expected step upload after start over, got %s", first.Step)
	}
	if first.ParsedResume != nil {
		t.Error("Expected parsed resume to be cleared")
	}
	if first.RewrittenResume != "" {
		t.Error("Expected rewritten resume to be cleared")
	}
	if first.Error != "" {
		t.Errorf("Expected error to be cleared, got %q", first.Error)
	}

	// A second restart must yield exactly the same state
	c.StartOver()
	second := c.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Repeated start over diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}

	if got := sessions.teardowns.Load(); got != 2 {
		t.Errorf("Expected session teardown on every restart, got %d calls", got)
	}
}

func TestRenderInterviewSummary(t *testing.T) {
	transcript := []types.ChatMessage{
		{Role: types.RoleSystem, Text: "session started"},
		{Role: types.RoleUser, Text: "A"},
		{Role: types.RoleAssistant, Text: "B"},
		{Role: types.RoleSystem, Text: "session ended"},
	}

	got := RenderInterviewSummary(transcript)
	want := "User: A\n\nAI: B"
	if got != want {
		t.Errorf("Expected summary %q, got %q", want, got)
	}

	if RenderInterviewSummary(nil) != "" {
		t.Error("Expected empty summary for empty transcript")
	}
}

func TestParseFailureRoutesToAuth(t *testing.T) {
	ai := happyAI()
	ai.parseErr = fmt.Errorf("boom")
	c := newTestController(t, defaultConfig(), ai, nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err == nil {
		t.Fatal("Expected parse error")
	}

	state := c.Snapshot()
	if state.Step != StepAuth {
		t.Errorf("Expected step auth after parse failure, got %s", state.Step)
	}
	if !strings.Contains(state.Error, "boom") {
		t.Errorf("Expected error to contain provider message, got %q", state.Error)
	}
	if state.ParsedResume != nil {
		t.Error("Expected parsed resume to remain unset after failure")
	}
	if state.Loading {
		t.Error("Expected loading to be cleared after failure")
	}
}

func TestScoreFailureStaysOnScore(t *testing.T) {
	ai := happyAI()
	ai.scoreErr = fmt.Errorf("score boom")
	c := newTestController(t, defaultConfig(), ai, nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err == nil {
		t.Fatal("Expected score error")
	}

	state := c.Snapshot()
	if state.Step != StepScore {
		t.Errorf("Expected to stay on score after score failure, got %s", state.Step)
	}
	if state.ParsedResume == nil {
		t.Error("Expected parse result to survive a score failure")
	}
	if !strings.Contains(state.Error, "score boom") {
		t.Errorf("Expected provider message in error, got %q", state.Error)
	}
	if state.Loading {
		t.Error("Expected loading to be cleared after failure")
	}

	// Retry re-runs only the scoring call, not the parse
	ai.scoreErr = nil
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("Score retry failed: %v", err)
	}
	if got := c.Snapshot().Step; got != StepPayment {
		t.Errorf("Expected step payment after retry, got %s", got)
	}
	if got := ai.parseCalls.Load(); got != 1 {
		t.Errorf("Expected no re-parse on score retry, got %d parse calls", got)
	}
	if got := ai.scoreCalls.Load(); got != 2 {
		t.Errorf("Expected a second score call on retry, got %d", got)
	}
}

func TestScoreAutoChain(t *testing.T) {
	ai := happyAI()
	ai.scoreStarted = make(chan struct{})
	ai.scoreRelease = make(chan struct{})
	c := newTestController(t, defaultConfig(), ai, nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.RunParse(ctx)
	}()

	// Score must start without any further user action
	select {
	case <-ai.scoreStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("Score was not chained after a successful parse")
	}

	state := c.Snapshot()
	if state.Step != StepScore {
		t.Errorf("Expected step score while scoring is in flight, got %s", state.Step)
	}
	if state.ParsedResume == nil {
		t.Error("Expected parsed resume to be stored before scoring")
	}
	if !state.Loading {
		t.Error("Expected loading sub-state while scoring")
	}

	// With score hung there is no false advance to payment
	time.Sleep(50 * time.Millisecond)
	if got := c.Snapshot().Step; got != StepScore {
		t.Errorf("Expected step to stay on score while hung, got %s", got)
	}

	close(ai.scoreRelease)
	if err := <-done; err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}

	final := c.Snapshot()
	if final.Step != StepPayment {
		t.Errorf("Expected step payment after scoring, got %s", final.Step)
	}
	if final.ScoreResult == nil || final.ScoreResult.OverallScore != 72 {
		t.Errorf("Expected stored score result, got %+v", final.ScoreResult)
	}
	if got := ai.scoreCalls.Load(); got != 1 {
		t.Errorf("Expected exactly one score call, got %d", got)
	}
}

func TestRewriteFailureStaysOnRewrite(t *testing.T) {
	ai := happyAI()
	ai.rewriteErr = fmt.Errorf("model overloaded")
	c := newTestController(t, defaultConfig(), ai, nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}
	if err := c.ConfirmPayment(); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if err := c.FinishInterview(ctx, nil); err == nil {
		t.Fatal("Expected rewrite error")
	}

	state := c.Snapshot()
	if state.Step != StepRewrite {
		t.Errorf("Expected to stay on rewrite after failure, got %s", state.Step)
	}
	if !strings.Contains(state.Error, "model overloaded") {
		t.Errorf("Expected provider message in error, got %q", state.Error)
	}

	// Retry succeeds once the provider recovers
	ai.rewriteErr = nil
	if err := c.RetryRewrite(ctx); err != nil {
		t.Fatalf("RetryRewrite failed: %v", err)
	}
	if got := c.Snapshot().Step; got != StepReview {
		t.Errorf("Expected step review after retry, got %s", got)
	}
}

func TestPaymentDisabledSkipsPaymentStep(t *testing.T) {
	cfg := defaultConfig()
	cfg.PaymentEnabled = false
	c := newTestController(t, cfg, happyAI(), nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}

	if got := c.Snapshot().Step; got != StepInterview {
		t.Errorf("Expected to skip straight to interview, got %s", got)
	}
}

func TestBeginInterviewRequiresVoiceConfiguration(t *testing.T) {
	cfg := defaultConfig()
	cfg.PaymentEnabled = false
	cfg.VoiceEnabled = false
	c := newTestController(t, cfg, happyAI(), nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}

	err := c.BeginInterview()
	if err == nil {
		t.Fatal("Expected configuration error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeNotConfigured {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeNotConfigured, appErr.Code)
	}
	// A configuration error is static; the step does not move
	if got := c.Snapshot().Step; got != StepInterview {
		t.Errorf("Expected step to stay on interview, got %s", got)
	}
}

func TestRewriteWithoutResumeDataReturnsToUpload(t *testing.T) {
	c := newTestController(t, defaultConfig(), happyAI(), nil)
	c.mu.Lock()
	c.state.Step = StepRewrite
	c.mu.Unlock()

	err := c.RetryRewrite(context.Background())
	if err == nil {
		t.Fatal("Expected missing resume data error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeMissingResumeData {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeMissingResumeData, appErr.Code)
	}
	if got := c.Snapshot().Step; got != StepUpload {
		t.Errorf("Expected fallback to upload, got %s", got)
	}
}

func TestUploadRejectsWrongStep(t *testing.T) {
	c := newTestController(t, defaultConfig(), happyAI(), nil)
	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	err := c.Upload(testDataURI, "resume2.pdf", 2048)
	if err == nil {
		t.Fatal("Expected invalid transition error")
	}
	if got := c.Snapshot().ResumeFileName; got != "resume.pdf" {
		t.Errorf("Expected original upload preserved, got %q", got)
	}
}

func TestApplyDiscount(t *testing.T) {
	c := newTestController(t, defaultConfig(), happyAI(), nil)
	ctx := context.Background()

	if err := c.Upload(testDataURI, "resume.pdf", 1024); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if err := c.SignIn(ctx); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := c.RunParse(ctx); err != nil {
		t.Fatalf("RunParse failed: %v", err)
	}

	validation, err := c.ApplyDiscount("LAUNCH50")
	if err != nil {
		t.Fatalf("ApplyDiscount failed: %v", err)
	}
	if !validation.Valid || validation.Percentage != 50 {
		t.Errorf("Expected valid 50%% discount, got %+v", validation)
	}
	if got := c.Snapshot().DiscountCode; got != "LAUNCH50" {
		t.Errorf("Expected discount code recorded, got %q", got)
	}

	invalid, err := c.ApplyDiscount("NOPE")
	if err != nil {
		t.Fatalf("ApplyDiscount failed: %v", err)
	}
	if invalid.Valid {
		t.Error("Expected invalid code to be rejected")
	}
	// An invalid attempt does not clobber the recorded code
	if got := c.Snapshot().DiscountCode; got != "LAUNCH50" {
		t.Errorf("Expected recorded discount code to survive, got %q", got)
	}
}

func TestStepInfoCoversAllSteps(t *testing.T) {
	steps := []Step{StepUpload, StepAuth, StepParse, StepScore, StepPayment, StepInterview, StepRewrite, StepReview}
	for _, s := range steps {
		info := s.Info()
		if info.Title == "" || info.Icon == "" {
			t.Errorf("Step %s has incomplete presentation info: %+v", s, info)
		}
	}
}
