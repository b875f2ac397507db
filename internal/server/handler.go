package server

import (
	"net/http"
	"strings"
	"time"

	"resumelift/internal/observability"
	"resumelift/internal/types"
	"resumelift/internal/workflow"

	"go.opentelemetry.io/otel/attribute"
)

// StateResponse is the full per-workflow view the browser polls
type StateResponse struct {
	WorkflowID string          `json:"workflowId"`
	State      workflow.State  `json:"state"`
	Session    SessionResponse `json:"session"`
	Notices    []Notice        `json:"notices"`
}

// SessionResponse is the interview session portion of a state poll
type SessionResponse struct {
	ConnectionState  string              `json:"connectionState"`
	Transcript       []types.ChatMessage `json:"transcript"`
	ShowFinishButton bool                `json:"showFinishButton"`
	AwaitingDecision bool                `json:"awaitingDecision"`
	LastActivity     time.Time           `json:"lastActivity,omitzero"`
}

func buildStateResponse(wf *Workflow) StateResponse {
	snap := wf.Sessions.Current().Snapshot()
	return StateResponse{
		WorkflowID: wf.ID,
		State:      wf.Controller.Snapshot(),
		Session: SessionResponse{
			ConnectionState:  snap.ConnectionState.String(),
			Transcript:       snap.Transcript,
			ShowFinishButton: snap.ShowFinishButton,
			AwaitingDecision: snap.AwaitingDecision,
			LastActivity:     snap.LastActivity,
		},
		Notices: wf.Notices.Drain(),
	}
}

// lookupWorkflow resolves the {id} path segment to a stored workflow,
// writing the 404 itself when missing
func (s *Server) lookupWorkflow(w http.ResponseWriter, r *http.Request) (*Workflow, bool) {
	wf, err := s.Workflows.Get(r.PathValue("id"))
	if err != nil {
		writeErrorResponse(w, "Workflow not found", err.Error(), http.StatusNotFound)
		return nil, false
	}
	return wf, true
}

// createWorkflowHandler starts a new workflow session
func (s *Server) createWorkflowHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, err := s.Workflows.Create(om)
		if err != nil {
			s.Logger.LogError(err, "Failed to create workflow")
			writeErrorResponse(w, "Failed to create workflow", err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSONResponse(w, http.StatusCreated, buildStateResponse(wf))
	}
}

// stateHandler returns the current workflow and session state
func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
}

// deleteWorkflowHandler removes a workflow and tears down its session
func (s *Server) deleteWorkflowHandler(w http.ResponseWriter, r *http.Request) {
	s.Workflows.Remove(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// createUploadHandler accepts the resume file as a data URI
func (s *Server) createUploadHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		_, span := tracer.Start(ctx, "api.upload")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		var req UploadRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(req.DataURI, "data:") {
			writeErrorResponse(w, "Invalid resume data", "dataUri must be a base64 data URI", http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.String("request.file_name", req.FileName),
			attribute.Int64("request.file_size", req.FileSize),
		)

		if err := wf.Controller.Upload(req.DataURI, req.FileName, req.FileSize); err != nil {
			span.RecordError(err)
			writeAppError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// authURLHandler returns the Google authorization URL for this workflow.
// The workflow ID doubles as the OAuth state parameter.
func (s *Server) authURLHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	url, err := wf.Identity.AuthCodeURL(wf.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}

// createAuthCallbackHandler completes the OAuth exchange and advances the
// workflow past the Auth step
func (s *Server) createAuthCallbackHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		ctx, span := tracer.Start(ctx, "api.auth_callback")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		var req AuthCallbackRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			writeErrorResponse(w, "Missing authorization code", "code field is required", http.StatusBadRequest)
			return
		}

		wf.Identity.SetCode(req.Code)
		if err := wf.Controller.SignIn(ctx); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "sign_in"))
			writeAppError(w, err)
			return
		}

		span.SetAttributes(attribute.Bool("success", true))
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// createParseHandler runs the parse step, which chains scoring on success
func (s *Server) createParseHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		ctx, span := tracer.Start(ctx, "api.parse")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		err := wf.Controller.RunParse(ctx)

		metrics := om.GetMetrics()
		snap := wf.Controller.Snapshot()
		metrics.RecordBusinessMetric(ctx, "resume_parsed", snap.ParsedResume != nil, om)
		if snap.ParsedResume != nil {
			metrics.RecordBusinessMetric(ctx, "resume_scored", snap.ScoreResult != nil, om)
		}

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "ai_processing"))
			writeAppError(w, err)
			return
		}

		span.SetAttributes(attribute.Bool("success", true))
		if snap.ScoreResult != nil {
			span.SetAttributes(attribute.Int("score.overall", snap.ScoreResult.OverallScore))
		}
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// discountHandler validates a discount code against the payment provider
func (s *Server) discountHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}

	var req DiscountRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	validation, err := wf.Controller.ApplyDiscount(req.Code)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, validation)
}

// createPaymentIntentHandler creates a payment intent for the configured
// amount, applying any validated discount
func (s *Server) createPaymentIntentHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		ctx, span := tracer.Start(ctx, "api.payment_intent")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		intent, err := wf.Controller.CreatePaymentIntent(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "payment"))
			writeAppError(w, err)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int64("payment.amount", intent.Amount),
		)
		writeJSONResponse(w, http.StatusOK, intent)
	}
}

// createPaymentConfirmHandler records a completed payment
func (s *Server) createPaymentConfirmHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		if err := wf.Controller.ConfirmPayment(); err != nil {
			writeAppError(w, err)
			return
		}

		metrics := om.GetMetrics()
		metrics.RecordBusinessMetric(r.Context(), "payment_completed", true, om)
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// createInterviewStartHandler opens the realtime voice session
func (s *Server) createInterviewStartHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		ctx, span := tracer.Start(ctx, "api.interview_start")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		if err := wf.Controller.BeginInterview(); err != nil {
			span.RecordError(err)
			writeAppError(w, err)
			return
		}

		snap := wf.Controller.Snapshot()
		if err := wf.Sessions.Current().Start(ctx, snap.ParsedResume); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "realtime_connect"))
			writeAppError(w, err)
			return
		}

		metrics := om.GetMetrics()
		metrics.RecordBusinessMetric(ctx, "session_started", true, om)
		span.SetAttributes(attribute.Bool("success", true))
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// interviewPauseHandler gracefully pauses the voice session
func (s *Server) interviewPauseHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	wf.Sessions.Current().Pause()
	writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
}

// interviewResumeHandler reopens a paused voice session
func (s *Server) interviewResumeHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	snap := wf.Controller.Snapshot()
	if err := wf.Sessions.Current().Resume(r.Context(), snap.ParsedResume); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
}

// interviewContinueHandler records the user's choice to keep going after
// the inactivity prompt
func (s *Server) interviewContinueHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	wf.Sessions.Current().ContinueAfterPrompt()
	writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
}

// createInterviewFinishHandler ends the interview and runs the rewrite
func (s *Server) createInterviewFinishHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		ctx, span := tracer.Start(ctx, "api.interview_finish")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		manager := wf.Sessions.Current()
		started := manager.StartedAt()
		transcript, err := manager.Finish()
		if err != nil {
			span.RecordError(err)
			writeAppError(w, err)
			return
		}

		metrics := om.GetMetrics()
		if !started.IsZero() {
			metrics.RecordSessionDuration(ctx, time.Since(started).Seconds(), om)
		}
		span.SetAttributes(attribute.Int("transcript.messages", len(transcript)))

		err = wf.Controller.FinishInterview(ctx, transcript)
		snap := wf.Controller.Snapshot()
		metrics.RecordBusinessMetric(ctx, "resume_rewritten", snap.RewrittenResume != "", om)

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "ai_processing"))
			writeAppError(w, err)
			return
		}

		span.SetAttributes(attribute.Bool("success", true))
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// createRewriteRetryHandler re-runs a failed rewrite
func (s *Server) createRewriteRetryHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("resumelift.api")
		ctx, span := tracer.Start(ctx, "api.rewrite_retry")
		defer span.End()

		wf, ok := s.lookupWorkflow(w, r)
		if !ok {
			return
		}

		err := wf.Controller.RetryRewrite(ctx)

		metrics := om.GetMetrics()
		snap := wf.Controller.Snapshot()
		metrics.RecordBusinessMetric(ctx, "resume_rewritten", snap.RewrittenResume != "", om)

		if err != nil {
			span.RecordError(err)
			writeAppError(w, err)
			return
		}
		span.SetAttributes(attribute.Bool("success", true))
		writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
	}
}

// editHandler stores the user's edits to the rewritten resume
func (s *Server) editHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}

	var req EditRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if err := wf.Controller.UpdateRewrittenResume(req.RewrittenResume); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
}

// restartHandler resets the workflow to the upload step
func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	wf.Controller.StartOver()
	writeJSONResponse(w, http.StatusOK, buildStateResponse(wf))
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return originalMiddleware(func(w http.ResponseWriter, r *http.Request) {
			// Wrap the ResponseWriter to detect rate limit responses
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}

			next(wrapper, r)

			if wrapper.statusCode == http.StatusTooManyRequests {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
