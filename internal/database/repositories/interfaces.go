package repositories

import (
	"context"
	"errors"

	"github.com/guirra-diy/smarthome-bridge-go/internal/database/models"
)

// ErrNotFound is returned when a lookup by primary key matches nothing.
var ErrNotFound = errors.New("not found")

// DeviceRepository defines device persistence operations
type DeviceRepository interface {
	GetByID(ctx context.Context, deviceID string) (*models.Device, error)
	GetByUser(ctx context.Context, userID string) ([]*models.Device, error)
	Upsert(ctx context.Context, device *models.Device) error
}

// UserRepository defines user persistence operations
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

// TokenRepository defines OAuth token persistence operations.
// Save overwrites the existing row for the user, keeping one live token.
type TokenRepository interface {
	GetByUser(ctx context.Context, userID string) (*models.UserToken, error)
	Save(ctx context.Context, token *models.UserToken) error
}
