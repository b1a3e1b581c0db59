package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/repositories"
)

// TokenRepository implements repositories.TokenRepository
type TokenRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *sqlx.DB, log *logrus.Logger) repositories.TokenRepository {
	return &TokenRepository{db: db, log: log}
}

// GetByUser retrieves the live token for a user
func (r *TokenRepository) GetByUser(ctx context.Context, userID string) (*models.UserToken, error) {
	query := `SELECT user_id, code, access_token, refresh_token, token_type, expires_in, created_at
			  FROM user_tokens WHERE user_id = ?`

	var token models.UserToken
	err := r.db.GetContext(ctx, &token, query, userID)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to get token")
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &token, nil
}

// Save overwrites the token row for the user. One live token per user;
// refresh rotates access_token and refresh_token in place.
func (r *TokenRepository) Save(ctx context.Context, token *models.UserToken) error {
	query := `
		INSERT INTO user_tokens (user_id, code, access_token, refresh_token, token_type, expires_in, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			code = excluded.code,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_in = excluded.expires_in,
			created_at = excluded.created_at
	`

	_, err := r.db.ExecContext(ctx, query,
		token.UserID,
		token.Code,
		token.AccessToken,
		token.RefreshToken,
		token.TokenType,
		token.ExpiresIn,
		token.CreatedAt,
	)
	if err != nil {
		r.log.WithError(err).WithField("user_id", token.UserID).Error("Failed to save token")
		return fmt.Errorf("failed to save token: %w", err)
	}

	return nil
}
