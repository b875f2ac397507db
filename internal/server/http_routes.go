package server

import (
	"net/http"
	"strings"

	"resumelift/internal/observability"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	// Add middleware layers with observability
	rateLimitHandler := s.createRateLimitMiddleware(om)
	requestLimitHandler := s.requestSizeLimitMiddleware()

	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return rateLimitHandler(s.authMiddleware(requestLimitHandler(h)))
	}

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)

	// Workflow lifecycle
	mux.HandleFunc("POST /api/workflows", protect(s.createWorkflowHandler(om)))
	mux.HandleFunc("GET /api/workflows/{id}", protect(s.stateHandler))
	mux.HandleFunc("DELETE /api/workflows/{id}", protect(s.deleteWorkflowHandler))
	mux.HandleFunc("POST /api/workflows/{id}/restart", protect(s.restartHandler))

	// Step operations
	mux.HandleFunc("POST /api/workflows/{id}/upload", protect(s.createUploadHandler(om)))
	mux.HandleFunc("GET /api/workflows/{id}/auth/url", protect(s.authURLHandler))
	mux.HandleFunc("POST /api/workflows/{id}/auth/callback", protect(s.createAuthCallbackHandler(om)))
	mux.HandleFunc("POST /api/workflows/{id}/parse", protect(s.createParseHandler(om)))
	mux.HandleFunc("POST /api/workflows/{id}/payment/discount", protect(s.discountHandler))
	mux.HandleFunc("POST /api/workflows/{id}/payment/intent", protect(s.createPaymentIntentHandler(om)))
	mux.HandleFunc("POST /api/workflows/{id}/payment/confirm", protect(s.createPaymentConfirmHandler(om)))
	mux.HandleFunc("POST /api/workflows/{id}/rewrite/retry", protect(s.createRewriteRetryHandler(om)))
	mux.HandleFunc("PUT /api/workflows/{id}/resume", protect(s.editHandler))

	// Interview session lifecycle
	mux.HandleFunc("GET /api/workflows/{id}/interview/events", protect(s.interviewEventsHandler))
	mux.HandleFunc("POST /api/workflows/{id}/interview/start", protect(s.createInterviewStartHandler(om)))
	mux.HandleFunc("POST /api/workflows/{id}/interview/pause", protect(s.interviewPauseHandler))
	mux.HandleFunc("POST /api/workflows/{id}/interview/resume", protect(s.interviewResumeHandler))
	mux.HandleFunc("POST /api/workflows/{id}/interview/continue", protect(s.interviewContinueHandler))
	mux.HandleFunc("POST /api/workflows/{id}/interview/finish", protect(s.createInterviewFinishHandler(om)))

	return mux
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		// Check for API key in X-API-Key header
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			// Check for Bearer token in Authorization header as fallback
			authHeader := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
				apiKey = after
			}
		}

		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		// Validate API key
		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"client_ip", r.RemoteAddr,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				// Limit the request body size
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}

			next(w, r)
		}
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
