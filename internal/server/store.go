package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"resumelift/internal/ai"
	"resumelift/internal/config"
	"resumelift/internal/errors"
	"resumelift/internal/identity"
	"resumelift/internal/observability"
	"resumelift/internal/payment"
	"resumelift/internal/session"
	"resumelift/internal/types"
	"resumelift/internal/voice"
	"resumelift/internal/workflow"
)

// Notice is a user-facing notification queued for the browser to pick up on
// its next state poll
type Notice struct {
	Message string    `json:"message"`
	IsError bool      `json:"isError"`
	At      time.Time `json:"at"`
}

// maxBufferedNotices caps the per-workflow notice queue so an abandoned
// browser session cannot grow it without bound
const maxBufferedNotices = 32

// noticeBuffer collects notifications between state polls. It backs both
// the workflow notifier and the session manager's toast handler.
type noticeBuffer struct {
	mu      sync.Mutex
	notices []Notice
}

func (b *noticeBuffer) Success(message string) { b.add(message, false) }
func (b *noticeBuffer) Failure(message string) { b.add(message, true) }

// Toast satisfies the session manager's toast handler signature
func (b *noticeBuffer) Toast(message string, isError bool) { b.add(message, isError) }

func (b *noticeBuffer) add(message string, isError bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.notices) >= maxBufferedNotices {
		b.notices = b.notices[1:]
	}
	b.notices = append(b.notices, Notice{Message: message, IsError: isError, At: time.Now()})
}

// Drain returns and clears the queued notices
func (b *noticeBuffer) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.notices
	b.notices = nil
	return out
}

// oauthSignIn adapts the two-legged OAuth callback flow to the controller's
// single SignIn call: the callback handler deposits the authorization code,
// then the controller exchange consumes it.
type oauthSignIn struct {
	mu       sync.Mutex
	provider *identity.GoogleProvider
	code     string
}

func (o *oauthSignIn) SetCode(code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.code = code
}

func (o *oauthSignIn) AuthCodeURL(state string) (string, error) {
	if o.provider == nil {
		return "", errors.NewConfigError(errors.ErrCodeNotConfigured,
			"Google sign-in is not configured", nil)
	}
	return o.provider.AuthCodeURL(state), nil
}

func (o *oauthSignIn) SignIn(ctx context.Context) (types.User, error) {
	o.mu.Lock()
	code := o.code
	o.code = ""
	o.mu.Unlock()

	if o.provider == nil {
		return types.User{}, errors.NewConfigError(errors.ErrCodeNotConfigured,
			"Google sign-in is not configured", nil)
	}
	if code == "" {
		return types.User{}, errors.NewValidationError(errors.ErrCodeSignInFailed,
			"No authorization code received from the sign-in redirect", nil)
	}
	return o.provider.Exchange(ctx, code)
}

// aiClient adapts the per-operation AI services to the controller's client
// contract, instrumenting each call the same way the HTTP layer does
type aiClient struct {
	parse   *ai.Service
	score   *ai.Service
	rewrite *ai.Service
	om      *observability.ObservabilityManager
}

func (c *aiClient) ParseResume(ctx context.Context, input types.ParseResumeInput) (types.ParsedResume, error) {
	var result types.ParsedResume
	err := c.track(ctx, "parse", func(ctx context.Context) (*ai.TokenUsage, error) {
		output, usage, err := c.parse.Provider.ParseResume(ctx, input)
		result = output
		return usage, err
	})
	return result, err
}

func (c *aiClient) ScoreResume(ctx context.Context, input types.ScoreResumeInput) (types.ScoreResult, error) {
	var result types.ScoreResult
	err := c.track(ctx, "score", func(ctx context.Context) (*ai.TokenUsage, error) {
		output, usage, err := c.score.Provider.ScoreResume(ctx, input)
		result = output
		return usage, err
	})
	return result, err
}

func (c *aiClient) RewriteResume(ctx context.Context, input types.RewriteResumeInput) (types.RewriteResumeOutput, error) {
	var result types.RewriteResumeOutput
	err := c.track(ctx, "rewrite", func(ctx context.Context) (*ai.TokenUsage, error) {
		output, usage, err := c.rewrite.Provider.RewriteResume(ctx, input)
		result = output
		return usage, err
	})
	return result, err
}

func (c *aiClient) track(ctx context.Context, operation string, fn func(context.Context) (*ai.TokenUsage, error)) error {
	if c.om == nil {
		_, err := fn(ctx)
		return err
	}
	metrics := c.om.GetMetrics()
	return metrics.TrackAIOperationWithTokens(ctx, operation, func(ctx context.Context) *observability.AIOperationResult {
		usage, err := fn(ctx)
		return &observability.AIOperationResult{
			Error:      err,
			TokenUsage: (*observability.TokenUsage)(usage),
		}
	}, c.om)
}

// sessionHolder owns the current interview session manager. A session
// manager is terminal once torn down, so a workflow restart swaps in a
// fresh one from the factory.
type sessionHolder struct {
	mu      sync.Mutex
	current *session.Manager
	factory func() *session.Manager
}

func newSessionHolder(factory func() *session.Manager) *sessionHolder {
	return &sessionHolder{current: factory(), factory: factory}
}

// Current returns the active session manager
func (h *sessionHolder) Current() *session.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Teardown ends the active session and replaces it with a fresh one
func (h *sessionHolder) Teardown() {
	h.mu.Lock()
	old := h.current
	h.current = h.factory()
	h.mu.Unlock()
	old.Teardown()
}

// Workflow bundles everything the server holds for one browser session
type Workflow struct {
	ID         string
	CreatedAt  time.Time
	Controller *workflow.Controller
	Sessions   *sessionHolder
	Identity   *oauthSignIn
	Notices    *noticeBuffer
}

// WorkflowStore is the in-memory registry of active workflows, keyed by
// uuid. Nothing is persisted; a server restart loses all sessions.
type WorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]*Workflow
	lastSeen  map[string]time.Time
	done      chan struct{}
	closeOnce sync.Once

	cfg    *config.Config
	logger *errors.Logger
}

// workflowTTL is how long an untouched workflow survives before eviction
const workflowTTL = 2 * time.Hour

// NewWorkflowStore creates the registry and starts its eviction loop
func NewWorkflowStore(cfg *config.Config, logger *errors.Logger) *WorkflowStore {
	s := &WorkflowStore{
		workflows: make(map[string]*Workflow),
		lastSeen:  make(map[string]time.Time),
		done:      make(chan struct{}),
		cfg:       cfg,
		logger:    logger,
	}
	go s.cleanupRoutine(10 * time.Minute)
	return s
}

// Create builds a new workflow with all collaborators wired from the
// application configuration
func (s *WorkflowStore) Create(om *observability.ObservabilityManager) (*Workflow, error) {
	parseCfg := s.cfg.GetParseConfig()
	parseSvc, err := ai.NewService(&parseCfg, "parse", s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse service: %w", err)
	}
	scoreCfg := s.cfg.GetScoreConfig()
	scoreSvc, err := ai.NewService(&scoreCfg, "score", s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create score service: %w", err)
	}
	rewriteCfg := s.cfg.GetRewriteConfig()
	rewriteSvc, err := ai.NewService(&rewriteCfg, "rewrite", s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rewrite service: %w", err)
	}

	// A missing Google client configuration is surfaced at sign-in time,
	// not at workflow creation
	signIn := &oauthSignIn{}
	if provider, err := identity.NewGoogleProvider(s.cfg.Identity, s.logger); err == nil {
		signIn.provider = provider
	} else {
		s.logger.Warn("Google sign-in unavailable", "error", err)
	}

	paymentSvc := payment.NewService(s.cfg.Payment,
		payment.NewStripeClient(s.cfg.Payment.StripeKey), s.logger)

	signedURLs := voice.NewSignedURLClient(s.cfg.Voice.SignedURLEndpoint,
		s.cfg.Voice.APIKey, s.cfg.Voice.DialTimeout, s.logger)
	transport := voice.NewWebSocketTransport(s.cfg.Voice.DialTimeout, s.logger)

	notices := &noticeBuffer{}

	sessions := newSessionHolder(func() *session.Manager {
		m := session.NewManager(session.Config{
			AgentID:           s.cfg.Voice.AgentID,
			InactivityTimeout: s.cfg.Voice.InactivityTimeout,
		}, signedURLs.GetSignedURL, transport, nil, s.logger)
		m.SetToastHandler(notices.Toast)
		m.SetPromptHandler(func() {
			notices.add("Are you still there? Continue or finish the interview.", false)
		})
		return m
	})

	controller := workflow.NewController(workflow.Config{
		PaymentEnabled: s.cfg.Payment.Enabled,
		VoiceEnabled:   s.cfg.Voice.Enabled,
		AgentID:        s.cfg.Voice.AgentID,
		AmountCents:    s.cfg.Payment.AmountCents,
	}, workflow.Collaborators{
		AI:       &aiClient{parse: parseSvc, score: scoreSvc, rewrite: rewriteSvc, om: om},
		Identity: signIn,
		Payments: paymentSvc,
		Sessions: sessions,
	}, notices, s.logger)

	wf := &Workflow{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		Controller: controller,
		Sessions:   sessions,
		Identity:   signIn,
		Notices:    notices,
	}

	s.mu.Lock()
	s.workflows[wf.ID] = wf
	s.lastSeen[wf.ID] = time.Now()
	s.mu.Unlock()

	s.logger.Info("Workflow created", "workflow_id", wf.ID)
	return wf, nil
}

// Get retrieves a workflow and refreshes its eviction deadline
func (s *WorkflowStore) Get(id string) (*Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wf, ok := s.workflows[id]
	if !ok {
		return nil, errors.NewValidationError(errors.ErrCodeWorkflowNotFound,
			fmt.Sprintf("No workflow with ID %s", id), nil)
	}
	s.lastSeen[id] = time.Now()
	return wf, nil
}

// Remove tears down a workflow's session and deletes it from the registry
func (s *WorkflowStore) Remove(id string) {
	s.mu.Lock()
	wf, ok := s.workflows[id]
	delete(s.workflows, id)
	delete(s.lastSeen, id)
	s.mu.Unlock()

	if ok {
		wf.Sessions.Teardown()
		s.logger.Info("Workflow removed", "workflow_id", id)
	}
}

// Count returns the number of active workflows
func (s *WorkflowStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workflows)
}

// Close stops the eviction loop and tears down every workflow
func (s *WorkflowStore) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.mu.Lock()
	workflows := s.workflows
	s.workflows = make(map[string]*Workflow)
	s.lastSeen = make(map[string]time.Time)
	s.mu.Unlock()

	for _, wf := range workflows {
		wf.Sessions.Teardown()
	}
}

func (s *WorkflowStore) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictStale()
		case <-s.done:
			return
		}
	}
}

// evictStale removes workflows untouched for longer than the TTL
func (s *WorkflowStore) evictStale() {
	now := time.Now()

	s.mu.Lock()
	var stale []*Workflow
	for id, seen := range s.lastSeen {
		if now.Sub(seen) > workflowTTL {
			if wf, ok := s.workflows[id]; ok {
				stale = append(stale, wf)
			}
			delete(s.workflows, id)
			delete(s.lastSeen, id)
		}
	}
	remaining := len(s.workflows)
	s.mu.Unlock()

	for _, wf := range stale {
		wf.Sessions.Teardown()
	}

	if len(stale) > 0 {
		s.logger.Info("Evicted stale workflows",
			"evicted", len(stale),
			"remaining", remaining)
	}
}
