package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"resumelift/internal/config"
	"resumelift/internal/errors"
)

func testProvider(t *testing.T) *GoogleProvider {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	provider, err := NewGoogleProvider(config.IdentityConfig{
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		RedirectURL:        "https://app.test/auth/callback",
	}, logger)
	if err != nil {
		t.Fatalf("NewGoogleProvider failed: %v", err)
	}
	return provider
}

func TestNewGoogleProviderRequiresCredentials(t *testing.T) {
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	_, err = NewGoogleProvider(config.IdentityConfig{}, logger)
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
}

func TestAuthCodeURL(t *testing.T) {
	provider := testProvider(t)

	authURL := provider.AuthCodeURL("state-token")
	for _, want := range []string{"client_id=client-id", "state=state-token", "redirect_uri="} {
		if !strings.Contains(authURL, want) {
			t.Errorf("Expected %q in auth URL, got %q", want, authURL)
		}
	}
}

func TestExchange(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Authorization"), "at-123") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"g-1","name":"Jane Doe","email":"jane@example.com"}`))
	}))
	defer userInfoServer.Close()

	provider := testProvider(t)
	provider.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}
	provider.userInfoURL = userInfoServer.URL

	user, err := provider.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if user.ID != "g-1" || user.Name != "Jane Doe" || user.Email != "jane@example.com" {
		t.Errorf("Unexpected user: %+v", user)
	}
}

func TestExchangeRejectsBadCode(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenServer.Close()

	provider := testProvider(t)
	provider.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}

	_, err := provider.Exchange(context.Background(), "bad-code")
	if err == nil {
		t.Fatal("Expected exchange error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeSignInFailed {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeSignInFailed, appErr.Code)
	}
}

func TestExchangeFallsBackToEmailForName(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"g-2","email":"anon@example.com"}`))
	}))
	defer userInfoServer.Close()

	provider := testProvider(t)
	provider.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:  tokenServer.URL + "/auth",
		TokenURL: tokenServer.URL + "/token",
	}
	provider.userInfoURL = userInfoServer.URL

	user, err := provider.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if user.Name != "anon@example.com" {
		t.Errorf("Expected email fallback for name, got %q", user.Name)
	}
}
