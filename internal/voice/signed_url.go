package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker/v2"

	"resumelift/internal/errors"
)

// SignedURLClient fetches short-lived signed session URLs from the voice
// provider. Requests retry transient failures and run behind a circuit
// breaker so a degraded provider does not hang every interview start.
type SignedURLClient struct {
	endpoint string
	apiKey   string
	client   *retryablehttp.Client
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *errors.Logger
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// NewSignedURLClient creates a client for the signed-URL endpoint
func NewSignedURLClient(endpoint, apiKey string, timeout time.Duration, logger *errors.Logger) *SignedURLClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	settings := gobreaker.Settings{
		Name:        "Voice-SignedURL",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 > counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &SignedURLClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		breaker:  gobreaker.NewCircuitBreaker[string](settings),
		logger:   logger,
	}
}

// GetSignedURL requests an ephemeral session URL for the given agent
func (c *SignedURLClient) GetSignedURL(ctx context.Context, agentID string) (string, error) {
	signedURL, err := c.breaker.Execute(func() (string, error) {
		return c.fetch(ctx, agentID)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return "", errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			"Voice provider is temporarily unavailable", err)
	}
	return signedURL, err
}

func (c *SignedURLClient) fetch(ctx context.Context, agentID string) (string, error) {
	reqURL := fmt.Sprintf("%s?agent_id=%s", c.endpoint, url.QueryEscape(agentID))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			"Failed to build signed URL request", err)
	}
	if c.apiKey != "" {
		req.Header.Set("xi-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			"Signed URL request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			fmt.Sprintf("Signed URL request returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var parsed signedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			"Failed to decode signed URL response", err)
	}
	if parsed.SignedURL == "" {
		return "", errors.NewNetworkError(errors.ErrCodeSignedURLFailed,
			"Voice provider returned an empty signed URL", nil)
	}

	c.logger.Debug("Obtained signed session URL", "agent_id", agentID)
	return parsed.SignedURL, nil
}
