// Package auth keeps per-user OAuth credentials valid, refreshing them
// before outbound calls and serializing refreshes per user.
package auth

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/repositories"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/errors"
)

// expirySkew refreshes tokens this long before their nominal expiry so a
// token never dies mid-flight. Documented deviation from strict
// now < created_at + expires_in validity.
const expirySkew = 30 * time.Second

// TokenClient is the slice of the Login-with-Amazon client the manager uses.
type TokenClient interface {
	Exchange(ctx context.Context, code string) (*alexa.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*alexa.TokenResponse, error)
	GetProfile(ctx context.Context, accessToken string) (*alexa.Profile, error)
}

// Manager implements the credential lifecycle: validity check, single-flight
// refresh and in-place persistence of rotated tokens.
type Manager struct {
	tokens repositories.TokenRepository
	users  repositories.UserRepository
	client TokenClient
	log    *logrus.Logger
	now    func() time.Time

	// group serializes check->refresh->persist per user so that at most one
	// refresh grant is in flight for a given refresh token. Refresh tokens
	// are single-use: a concurrent second grant would burn the rotation.
	group singleflight.Group
}

// NewManager creates a credential lifecycle manager
func NewManager(tokens repositories.TokenRepository, users repositories.UserRepository, client TokenClient, log *logrus.Logger) *Manager {
	return &Manager{
		tokens: tokens,
		users:  users,
		client: client,
		log:    log,
		now:    time.Now,
	}
}

func (m *Manager) isValid(token *models.UserToken) bool {
	expiry := token.CreatedAt.Add(time.Duration(token.ExpiresIn) * time.Second)
	return m.now().Before(expiry.Add(-expirySkew))
}

// GetValidToken returns a usable bearer token for the user, refreshing and
// persisting a rotated pair when the stored one has expired. Concurrent
// callers for the same user share one refresh; failures surface as
// AuthExpired and the caller must not proceed.
func (m *Manager) GetValidToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	v, err, _ := m.group.Do(userID, func() (interface{}, error) {
		return m.loadOrRefresh(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func (m *Manager) loadOrRefresh(ctx context.Context, userID string) (*oauth2.Token, error) {
	stored, err := m.tokens.GetByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrAuthExpired, err)
	}

	if m.isValid(stored) {
		return oauthToken(stored), nil
	}

	m.log.WithField("user_id", userID).Info("Token expired, refreshing")

	refreshed, err := m.client.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		m.log.WithError(err).WithField("user_id", userID).Error("Token refresh failed")
		return nil, errors.Wrap(errors.ErrAuthExpired, err)
	}

	rotated := &models.UserToken{
		UserID:       userID,
		Code:         stored.Code,
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		TokenType:    refreshed.TokenType,
		ExpiresIn:    refreshed.ExpiresIn,
		CreatedAt:    m.now(),
	}

	if err := m.tokens.Save(ctx, rotated); err != nil {
		return nil, errors.Wrap(errors.ErrAuthExpired, err)
	}

	return oauthToken(rotated), nil
}

// AcceptGrant handles account linking: resolves the grantee profile,
// exchanges the authorization code and persists profile plus initial token.
func (m *Manager) AcceptGrant(ctx context.Context, code, granteeToken string) error {
	profile, err := m.client.GetProfile(ctx, granteeToken)
	if err != nil {
		return errors.Wrap(errors.ErrAuthExpired, err)
	}

	granted, err := m.client.Exchange(ctx, code)
	if err != nil {
		return errors.Wrap(errors.ErrAuthExpired, err)
	}

	if err := m.users.Save(ctx, &models.User{
		UserID: profile.UserID,
		Email:  profile.Email,
		Name:   profile.Name,
	}); err != nil {
		return err
	}

	token := &models.UserToken{
		UserID:       profile.UserID,
		Code:         code,
		AccessToken:  granted.AccessToken,
		RefreshToken: granted.RefreshToken,
		TokenType:    granted.TokenType,
		ExpiresIn:    granted.ExpiresIn,
		CreatedAt:    m.now(),
	}
	if err := m.tokens.Save(ctx, token); err != nil {
		return err
	}

	m.log.WithField("user_id", profile.UserID).Info("Account linked")
	return nil
}

// ResolveUser returns the user id behind a directive scope bearer token.
func (m *Manager) ResolveUser(ctx context.Context, accessToken string) (string, error) {
	profile, err := m.client.GetProfile(ctx, accessToken)
	if err != nil {
		return "", errors.Wrap(errors.ErrAuthExpired, err)
	}
	return profile.UserID, nil
}

func oauthToken(token *models.UserToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.CreatedAt.Add(time.Duration(token.ExpiresIn) * time.Second),
	}
}
