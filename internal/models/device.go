package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GarminDevice binds a Connect IQ device to a user account. SecretHash holds
// a bcrypt hash of the device's ingest secret; an empty hash disables the
// secret check for devices registered before secrets were introduced.
type GarminDevice struct {
	ID         uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	DeviceID   string    `gorm:"size:128;uniqueIndex;not null" json:"device_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	SecretHash string    `gorm:"size:128" json:"-"`
}

func (d *GarminDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DailySummary is one telemetry row per (user, UTC day), upserted on ingest.
type DailySummary struct {
	ID                 uuid.UUID `gorm:"type:uuid;primarykey" json:"id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	UserID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_daily_summaries_user_date" json:"user_id"`
	Date               time.Time `gorm:"not null;uniqueIndex:idx_daily_summaries_user_date" json:"date"`
	Timezone           string    `gorm:"size:64" json:"timezone"`
	Steps              int       `json:"steps"`
	ActiveCaloriesKcal float64   `json:"active_calories_kcal"`
	BodyBatteryEvening *int      `json:"body_battery_evening,omitempty"`
	StressAvg          *int      `json:"stress_avg,omitempty"`
}

func (s *DailySummary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
