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

// DeviceRepository implements repositories.DeviceRepository
type DeviceRepository struct {
	db  *sqlx.DB
	log *logrus.Logger
}

// NewDeviceRepository creates a new DeviceRepository
func NewDeviceRepository(db *sqlx.DB, log *logrus.Logger) repositories.DeviceRepository {
	return &DeviceRepository{db: db, log: log}
}

// GetByID retrieves a device by its device_id
func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT device_id, user_id, device_template, name, capabilities, modes, topic_events, updated_at
			  FROM devices WHERE device_id = ?`

	var device models.Device
	err := r.db.GetContext(ctx, &device, query, deviceID)
	if err == sql.ErrNoRows {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("device_id", deviceID).Error("Failed to get device")
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &device, nil
}

// GetByUser retrieves all devices owned by a user
func (r *DeviceRepository) GetByUser(ctx context.Context, userID string) ([]*models.Device, error) {
	query := `SELECT device_id, user_id, device_template, name, capabilities, modes, topic_events, updated_at
			  FROM devices WHERE user_id = ? ORDER BY device_id`

	var devices []*models.Device
	if err := r.db.SelectContext(ctx, &devices, query, userID); err != nil {
		r.log.WithError(err).WithField("user_id", userID).Error("Failed to list devices")
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	return devices, nil
}

// Upsert inserts a device or replaces an existing row with the same device_id.
// Re-registration may grow the capability set; callers merge before saving.
func (r *DeviceRepository) Upsert(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (device_id, user_id, device_template, name, capabilities, modes, topic_events, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			user_id = excluded.user_id,
			device_template = excluded.device_template,
			name = excluded.name,
			capabilities = excluded.capabilities,
			modes = excluded.modes,
			topic_events = excluded.topic_events,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	device.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		device.DeviceID,
		device.UserID,
		device.Template,
		device.Name,
		device.Capabilities,
		device.Modes,
		device.TopicEvents,
		now,
	)
	if err != nil {
		r.log.WithError(err).WithField("device_id", device.DeviceID).Error("Failed to upsert device")
		return fmt.Errorf("failed to upsert device: %w", err)
	}

	return nil
}
