package database

import (
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/guirra-diy/smarthome-bridge-go/internal/database/repositories"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database/sqlite"
)

// Repositories holds all repository instances
type Repositories struct {
	Device repositories.DeviceRepository
	User   repositories.UserRepository
	Token  repositories.TokenRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *sqlx.DB, log *logrus.Logger) *Repositories {
	return &Repositories{
		Device: sqlite.NewDeviceRepository(db, log),
		User:   sqlite.NewUserRepository(db, log),
		Token:  sqlite.NewTokenRepository(db, log),
	}
}
