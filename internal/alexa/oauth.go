package alexa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
)

// TokenResponse represents a Login-with-Amazon token grant response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Profile represents the linked Amazon account profile
type Profile struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// OAuthClient talks to the Login-with-Amazon token and profile endpoints.
type OAuthClient struct {
	httpClient   *http.Client
	tokenURL     string
	profileURL   string
	clientID     string
	clientSecret string
	log          *logrus.Logger
}

// NewOAuthClient creates a Login-with-Amazon client
func NewOAuthClient(cfg config.AlexaConfig, log *logrus.Logger) *OAuthClient {
	return &OAuthClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		tokenURL:     cfg.TokenURL,
		profileURL:   cfg.ProfileURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		log:          log,
	}
}

// Exchange trades an authorization code for the initial token pair.
func (c *OAuthClient) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	return c.requestToken(ctx, data)
}

// Refresh performs a refresh-token grant. A successful refresh invalidates
// the presented refresh token; callers serialize refreshes per user.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	return c.requestToken(ctx, data)
}

func (c *OAuthClient) requestToken(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token grant failed with status %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResp, nil
}

// GetProfile resolves the account profile behind a bearer token.
func (c *OAuthClient) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request failed with status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}

	return &profile, nil
}
