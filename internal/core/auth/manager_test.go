package auth

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.UserToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: map[string]*models.UserToken{}}
}

func (r *fakeTokenRepo) GetByUser(_ context.Context, userID string) (*models.UserToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[userID]
	if !ok {
		return nil, errors.ErrAuthExpired
	}
	copied := *token
	return &copied, nil
}

func (r *fakeTokenRepo) Save(_ context.Context, token *models.UserToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *token
	r.tokens[token.UserID] = &copied
	return nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, errors.ErrAuthExpired
	}
	return user, nil
}

func (r *fakeUserRepo) Save(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
	return nil
}

type fakeTokenClient struct {
	refreshCalls atomic.Int64
	refreshGate  chan struct{}
	refreshErr   error
	profile      *alexa.Profile
}

func (c *fakeTokenClient) Exchange(_ context.Context, code string) (*alexa.TokenResponse, error) {
	return &alexa.TokenResponse{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}, nil
}

func (c *fakeTokenClient) Refresh(_ context.Context, refreshToken string) (*alexa.TokenResponse, error) {
	if c.refreshGate != nil {
		<-c.refreshGate
	}
	c.refreshCalls.Add(1)
	if c.refreshErr != nil {
		return nil, c.refreshErr
	}
	return &alexa.TokenResponse{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
		TokenType:    "bearer",
		ExpiresIn:    3600,
	}, nil
}

func (c *fakeTokenClient) GetProfile(_ context.Context, _ string) (*alexa.Profile, error) {
	if c.profile == nil {
		return nil, errors.ErrAuthExpired
	}
	return c.profile, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestManager(tokens *fakeTokenRepo, users *fakeUserRepo, client *fakeTokenClient, now time.Time) *Manager {
	m := NewManager(tokens, users, client, testLogger())
	m.now = func() time.Time { return now }
	return m
}

func TestGetValidTokenReturnsStoredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := newFakeTokenRepo()
	tokens.tokens["u1"] = &models.UserToken{
		UserID:       "u1",
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		TokenType:    "bearer",
		ExpiresIn:    3600,
		CreatedAt:    now.Add(-time.Minute),
	}
	client := &fakeTokenClient{}
	m := newTestManager(tokens, newFakeUserRepo(), client, now)

	token, err := m.GetValidToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "stored-access", token.AccessToken)
	assert.Zero(t, client.refreshCalls.Load())
}

func TestGetValidTokenRefreshesExpiredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := newFakeTokenRepo()
	tokens.tokens["u1"] = &models.UserToken{
		UserID:       "u1",
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
		TokenType:    "bearer",
		ExpiresIn:    3600,
		CreatedAt:    now.Add(-2 * time.Hour),
	}
	client := &fakeTokenClient{}
	m := newTestManager(tokens, newFakeUserRepo(), client, now)

	token, err := m.GetValidToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "rotated-access", token.AccessToken)
	assert.Equal(t, int64(1), client.refreshCalls.Load())

	// Rotated pair persisted in place with a fresh creation time.
	stored := tokens.tokens["u1"]
	assert.Equal(t, "rotated-refresh", stored.RefreshToken)
	assert.Equal(t, now, stored.CreatedAt)
}

func TestTokenValidityBoundary(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := &models.UserToken{ExpiresIn: 3600, CreatedAt: created}

	m := NewManager(newFakeTokenRepo(), newFakeUserRepo(), &fakeTokenClient{}, testLogger())

	// Comfortably inside the window.
	m.now = func() time.Time { return created.Add(time.Hour - expirySkew - time.Second) }
	assert.True(t, m.isValid(token))

	// At the skewed boundary the token counts as expired.
	m.now = func() time.Time { return created.Add(time.Hour - expirySkew) }
	assert.False(t, m.isValid(token))

	m.now = func() time.Time { return created.Add(2 * time.Hour) }
	assert.False(t, m.isValid(token))
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := newFakeTokenRepo()
	tokens.tokens["u1"] = &models.UserToken{
		UserID:       "u1",
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
		TokenType:    "bearer",
		ExpiresIn:    60,
		CreatedAt:    now.Add(-time.Hour),
	}
	client := &fakeTokenClient{refreshGate: make(chan struct{})}
	m := newTestManager(tokens, newFakeUserRepo(), client, now)

	const callers = 16
	results := make(chan string, callers)
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.GetValidToken(context.Background(), "u1")
			if err != nil {
				errs <- err
				return
			}
			results <- token.AccessToken
		}()
	}

	// Hold the refresh open long enough for every caller to join the flight,
	// then let it complete.
	time.Sleep(50 * time.Millisecond)
	close(client.refreshGate)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), client.refreshCalls.Load())
	for access := range results {
		assert.Equal(t, "rotated-access", access)
	}
}

func TestRefreshFailureSurfacesAsAuthExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := newFakeTokenRepo()
	tokens.tokens["u1"] = &models.UserToken{
		UserID:       "u1",
		RefreshToken: "burnt",
		ExpiresIn:    60,
		CreatedAt:    now.Add(-time.Hour),
	}
	client := &fakeTokenClient{refreshErr: errors.ErrUpstreamUnavailable}
	m := newTestManager(tokens, newFakeUserRepo(), client, now)

	_, err := m.GetValidToken(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, "EXPIRED_AUTHORIZATION_CREDENTIAL", errors.AlexaErrorType(err))
}

func TestAcceptGrantPersistsUserAndToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens := newFakeTokenRepo()
	users := newFakeUserRepo()
	client := &fakeTokenClient{
		profile: &alexa.Profile{UserID: "amzn1.u1", Email: "u@example.com", Name: "U"},
	}
	m := newTestManager(tokens, users, client, now)

	require.NoError(t, m.AcceptGrant(context.Background(), "grant-code", "grantee-token"))

	user, err := users.GetByID(context.Background(), "amzn1.u1")
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", user.Email)

	stored := tokens.tokens["amzn1.u1"]
	require.NotNil(t, stored)
	assert.Equal(t, "grant-code", stored.Code)
	assert.Equal(t, "access-grant-code", stored.AccessToken)
	assert.Equal(t, now, stored.CreatedAt)
}

func TestResolveUser(t *testing.T) {
	client := &fakeTokenClient{profile: &alexa.Profile{UserID: "amzn1.u9"}}
	m := newTestManager(newFakeTokenRepo(), newFakeUserRepo(), client, time.Now())

	userID, err := m.ResolveUser(context.Background(), "bearer-token")
	require.NoError(t, err)
	assert.Equal(t, "amzn1.u9", userID)
}
