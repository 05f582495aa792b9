package repositories

import (
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the users, friend_requests, friendships and messages tables
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.Message{},
	)
	return errors.Wrap(err, "auto migrate")
}
