package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/repositories"
)

// UserRepository implements repositories.UserRepository
type UserRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB, log *logrus.Logger) repositories.UserRepository {
	return &UserRepository{db: db, log: log}
}

// GetByID retrieves a user by user_id
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT user_id, email, name, updated_at FROM users WHERE user_id = ?`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, userID)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to get user")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// Save inserts or updates a user profile
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, email, name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	user.UpdatedAt = now

	if _, err := r.db.ExecContext(ctx, query, user.UserID, user.Email, user.Name, now); err != nil {
		r.log.WithError(err).WithField("user_id", user.UserID).Error("Failed to save user")
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}
