package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"resumelift/internal/errors"
)

func TestWriteAppErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name: "workflow not found",
			err: errors.NewValidationError(errors.ErrCodeWorkflowNotFound,
				"No workflow with ID abc", nil),
			wantStatus: http.StatusNotFound,
		},
		{
			name: "invalid transition",
			err: errors.NewValidationError(errors.ErrCodeInvalidTransition,
				"Cannot parse before upload", nil),
			wantStatus: http.StatusConflict,
		},
		{
			name: "operation in flight",
			err: errors.NewValidationError(errors.ErrCodeOperationInFlight,
				"An operation is already running", nil),
			wantStatus: http.StatusConflict,
		},
		{
			name: "session completed",
			err: errors.NewValidationError(errors.ErrCodeSessionCompleted,
				"The interview session has already completed", nil),
			wantStatus: http.StatusConflict,
		},
		{
			name: "validation error",
			err: errors.NewValidationError(errors.ErrCodeUnsupportedFile,
				"Unsupported file type", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "permission error",
			err: errors.NewPermissionError(errors.ErrCodeMicPermission,
				"Microphone access was denied", nil),
			wantStatus: http.StatusForbidden,
		},
		{
			name: "payment error",
			err: errors.NewPaymentError(errors.ErrCodePaymentFailed,
				"Card was declined", nil),
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name: "network error",
			err: errors.NewNetworkError(errors.ErrCodeRealtimeConnect,
				"Could not connect to the voice agent", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "config error",
			err: errors.NewConfigError(errors.ErrCodeNotConfigured,
				"Google sign-in is not configured", nil),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Error == "" {
				t.Error("expected a non-empty error title")
			}
		})
	}
}

func TestWriteAppErrorPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAppError(rec, http.ErrBodyNotAllowed)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500 for plain errors, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := &Server{
		APIKeys: map[string]bool{"valid-key-12345": true},
		Logger:  testLogger(),
	}

	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{
			name:       "missing key",
			headers:    nil,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key",
			headers:    map[string]string{"X-API-Key": "wrong"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid key",
			headers:    map[string]string{"X-API-Key": "valid-key-12345"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid bearer token",
			headers:    map[string]string{"Authorization": "Bearer valid-key-12345"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/workflows/abc", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestAuthMiddlewareNoKeysConfigured(t *testing.T) {
	s := &Server{Logger: testLogger()}

	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected open access with no keys configured, got %d", rec.Code)
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "****" {
		t.Errorf("expected short keys fully masked, got %s", got)
	}
	if got := maskAPIKey("abcdefgh12345678"); got != "abcdefgh****" {
		t.Errorf("expected prefix plus mask, got %s", got)
	}
}

func TestGetRateLimitKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
	req.Header.Set("X-API-Key", "my-key")
	req.RemoteAddr = "10.1.2.3:5000"

	if key := getRateLimitKey(req, true, true); key != "api:my-key" {
		t.Errorf("expected API key to take precedence, got %s", key)
	}
	if key := getRateLimitKey(req, false, true); key != "ip:10.1.2.3" {
		t.Errorf("expected IP key, got %s", key)
	}
	if key := getRateLimitKey(req, false, false); key != "" {
		t.Errorf("expected empty key when both modes disabled, got %s", key)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr",
			remoteAddr: "192.168.1.10:1234",
			want:       "192.168.1.10",
		},
		{
			name:       "x-forwarded-for",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			want:       "203.0.113.5",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "invalid forwarded header falls through",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(60, 0, 2, testLogger())
	defer rl.Close()

	if !rl.Allow("client") {
		t.Error("first request within burst should be allowed")
	}
	if !rl.Allow("client") {
		t.Error("second request within burst should be allowed")
	}
	if rl.Allow("client") {
		t.Error("request beyond burst should be denied")
	}
	if !rl.Allow("other") {
		t.Error("a different key has its own bucket")
	}
}
