package server

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"resumelift/internal/errors"
	"resumelift/internal/session"
)

func testLogger() *errors.Logger {
	return errors.NewLogger(slog.LevelError)
}

func TestNoticeBufferDrain(t *testing.T) {
	b := &noticeBuffer{}
	b.Success("parsed")
	b.Failure("payment declined")
	b.Toast("reconnecting", true)

	notices := b.Drain()
	if len(notices) != 3 {
		t.Fatalf("expected 3 notices, got %d", len(notices))
	}
	if notices[0].Message != "parsed" || notices[0].IsError {
		t.Errorf("unexpected first notice: %+v", notices[0])
	}
	if !notices[1].IsError {
		t.Error("failure notice should be marked as error")
	}

	if again := b.Drain(); len(again) != 0 {
		t.Errorf("expected empty buffer after drain, got %d notices", len(again))
	}
}

func TestNoticeBufferCap(t *testing.T) {
	b := &noticeBuffer{}
	for i := 0; i < maxBufferedNotices+10; i++ {
		b.Success("notice")
	}

	notices := b.Drain()
	if len(notices) != maxBufferedNotices {
		t.Errorf("expected buffer capped at %d, got %d", maxBufferedNotices, len(notices))
	}
}

func TestOAuthSignInWithoutProvider(t *testing.T) {
	signIn := &oauthSignIn{}

	if _, err := signIn.AuthCodeURL("state"); err == nil {
		t.Error("expected error when provider is not configured")
	}

	if _, err := signIn.SignIn(context.Background()); err == nil {
		t.Error("expected error when provider is not configured")
	}
}

func TestOAuthSignInWithoutCode(t *testing.T) {
	signIn := &oauthSignIn{}
	signIn.SetCode("")

	_, err := signIn.SignIn(context.Background())
	if err == nil {
		t.Fatal("expected error when no authorization code was deposited")
	}
}

type stubConn struct{}

func (stubConn) Close() error { return nil }

type stubTransport struct{}

func (stubTransport) Connect(_ context.Context, _ string, _ map[string]string, _ session.EventSink) (session.Connection, error) {
	return stubConn{}, nil
}

func newTestSessionHolder() (*sessionHolder, *int) {
	created := 0
	factory := func() *session.Manager {
		created++
		return session.NewManager(session.Config{AgentID: "agent"},
			func(ctx context.Context, agentID string) (string, error) { return "wss://test", nil },
			stubTransport{}, nil, testLogger())
	}
	return newSessionHolder(factory), &created
}

func TestSessionHolderTeardownSwapsManager(t *testing.T) {
	holder, created := newTestSessionHolder()
	if *created != 1 {
		t.Fatalf("expected one manager created, got %d", *created)
	}

	first := holder.Current()
	holder.Teardown()
	second := holder.Current()

	if first == second {
		t.Error("expected a fresh manager after teardown")
	}
	if *created != 2 {
		t.Errorf("expected two managers created, got %d", *created)
	}

	// The old manager must be terminal
	if err := first.Start(context.Background(), nil); err == nil {
		t.Error("expected the torn-down manager to reject Start")
	}

	// The replacement must be usable
	if err := second.Start(context.Background(), nil); err != nil {
		t.Errorf("expected the fresh manager to start, got %v", err)
	}
	second.Teardown()
}

func newTestStore() *WorkflowStore {
	return &WorkflowStore{
		workflows: make(map[string]*Workflow),
		lastSeen:  make(map[string]time.Time),
		done:      make(chan struct{}),
		logger:    testLogger(),
	}
}

func insertWorkflow(s *WorkflowStore, id string, seen time.Time) *Workflow {
	holder, _ := newTestSessionHolder()
	wf := &Workflow{
		ID:        id,
		CreatedAt: seen,
		Sessions:  holder,
		Notices:   &noticeBuffer{},
	}
	s.mu.Lock()
	s.workflows[id] = wf
	s.lastSeen[id] = seen
	s.mu.Unlock()
	return wf
}

func TestWorkflowStoreGet(t *testing.T) {
	s := newTestStore()
	insertWorkflow(s, "wf-1", time.Now())

	wf, err := s.Get("wf-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if wf.ID != "wf-1" {
		t.Errorf("expected workflow wf-1, got %s", wf.ID)
	}

	_, err = s.Get("missing")
	if err == nil {
		t.Fatal("expected error for unknown workflow")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok || appErr.Code != errors.ErrCodeWorkflowNotFound {
		t.Errorf("expected ErrCodeWorkflowNotFound, got %v", err)
	}
}

func TestWorkflowStoreRemove(t *testing.T) {
	s := newTestStore()
	wf := insertWorkflow(s, "wf-1", time.Now())
	manager := wf.Sessions.Current()

	s.Remove("wf-1")

	if s.Count() != 0 {
		t.Errorf("expected empty store, got %d workflows", s.Count())
	}
	if err := manager.Start(context.Background(), nil); err == nil {
		t.Error("expected the removed workflow's session to be torn down")
	}

	// Removing an unknown ID is a no-op
	s.Remove("missing")
}

func TestWorkflowStoreEvictStale(t *testing.T) {
	s := newTestStore()
	insertWorkflow(s, "stale", time.Now().Add(-workflowTTL-time.Minute))
	insertWorkflow(s, "fresh", time.Now())

	s.evictStale()

	if s.Count() != 1 {
		t.Fatalf("expected 1 workflow after eviction, got %d", s.Count())
	}
	if _, err := s.Get("fresh"); err != nil {
		t.Errorf("fresh workflow should survive eviction: %v", err)
	}
	if _, err := s.Get("stale"); err == nil {
		t.Error("stale workflow should have been evicted")
	}
}

func TestWorkflowStoreGetRefreshesDeadline(t *testing.T) {
	s := newTestStore()
	insertWorkflow(s, "wf-1", time.Now().Add(-workflowTTL-time.Minute))

	// A poll before the sweep keeps the workflow alive
	if _, err := s.Get("wf-1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	s.evictStale()

	if _, err := s.Get("wf-1"); err != nil {
		t.Errorf("recently polled workflow should not be evicted: %v", err)
	}
}

func TestWorkflowStoreClose(t *testing.T) {
	s := newTestStore()
	wf := insertWorkflow(s, "wf-1", time.Now())
	manager := wf.Sessions.Current()

	s.Close()
	// Close is idempotent
	s.Close()

	if s.Count() != 0 {
		t.Errorf("expected empty store after close, got %d workflows", s.Count())
	}
	if err := manager.Start(context.Background(), nil); err == nil {
		t.Error("expected sessions to be torn down on close")
	}
}

func TestNoticeBufferConcurrentAdds(t *testing.T) {
	b := &noticeBuffer{}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				b.Toast("msg", false)
			}
		}()
	}
	wg.Wait()

	if got := len(b.Drain()); got != maxBufferedNotices {
		t.Errorf("expected %d notices, got %d", maxBufferedNotices, got)
	}
}
