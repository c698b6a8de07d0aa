package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User status values. BANNED is terminal: nothing in this service ever
// transitions a user out of it.
const (
	UserStatusPending = "PENDING"
	UserStatusActive  = "ACTIVE"
	UserStatusBanned  = "BANNED"
)

type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	TelegramUserID   int64          `gorm:"uniqueIndex;not null" json:"telegram_user_id"`
	TelegramUsername *string        `gorm:"size:255" json:"telegram_username,omitempty"`
	Status           string         `gorm:"not null;default:'PENDING'" json:"status"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the user may submit photos and query stats.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}
