package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"resumelift/internal/config"
	"resumelift/internal/errors"
	"resumelift/internal/types"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider implements sign-in with Google via the OAuth2
// authorization-code flow
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	logger      *errors.Logger
}

type googleUserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewGoogleProvider creates a Google identity provider from configuration
func NewGoogleProvider(cfg config.IdentityConfig, logger *errors.Logger) (*GoogleProvider, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, errors.NewConfigError(errors.ErrCodeNotConfigured,
			"Google sign-in requires a client ID and secret", nil)
	}

	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: defaultUserInfoURL,
		logger:      logger,
	}, nil
}

// AuthCodeURL returns the Google consent page URL for the given state token
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the authenticated user's
// identity
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (types.User, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return types.User{}, errors.NewNetworkError(errors.ErrCodeSignInFailed,
			"Failed to exchange the authorization code", err)
	}

	user, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return types.User{}, err
	}

	p.logger.Info("User authenticated", "user", user.Name)
	return user, nil
}

func (p *GoogleProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (types.User, error) {
	client := p.oauth.Client(ctx, token)
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return types.User{}, errors.NewNetworkError(errors.ErrCodeSignInFailed,
			"Failed to fetch the user profile", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return types.User{}, errors.NewNetworkError(errors.ErrCodeSignInFailed,
			fmt.Sprintf("User profile request returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return types.User{}, errors.NewInternalError(errors.ErrCodeSignInFailed,
			"Failed to decode the user profile", err)
	}
	if info.ID == "" {
		return types.User{}, errors.NewInternalError(errors.ErrCodeSignInFailed,
			"User profile is missing an identifier", nil)
	}

	name := info.Name
	if name == "" {
		name = info.Email
	}
	return types.User{ID: info.ID, Name: name, Email: info.Email}, nil
}
