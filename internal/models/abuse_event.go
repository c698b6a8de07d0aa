package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Abuse categories persisted on AbuseEvent rows. They mirror the analyzer's
// safety categories one-to-one, except that "OK" has no abuse counterpart and
// anything unrecognized falls back to OTHER.
const (
	AbuseCategoryNotMeal       = "NOT_MEAL"
	AbuseCategoryNudity        = "NUDITY"
	AbuseCategorySexualContent = "SEXUAL_CONTENT"
	AbuseCategoryViolence      = "VIOLENCE"
	AbuseCategorySelfHarm      = "SELF_HARM"
	AbuseCategoryHateSymbols   = "HATE_SYMBOLS"
	AbuseCategoryDrugs         = "DRUGS"
	AbuseCategoryWeapon        = "WEAPON"
	AbuseCategoryOther         = "OTHER"
)

// AbuseEvent is an append-only record of a rejected submission. UserID is
// nullable so evidence survives even when the sender has no account.
type AbuseEvent struct {
	ID             uuid.UUID  `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TelegramUserID int64      `gorm:"not null;index" json:"telegram_user_id"`
	Category       string     `gorm:"size:32;not null" json:"category"`
	Reason         string     `gorm:"size:500" json:"reason"`
}

func (e *AbuseEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
