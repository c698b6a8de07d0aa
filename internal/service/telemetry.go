package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealwise/backend/internal/models"
)

// DailyTelemetry is the daily-activity payload sent by a bound device.
// Timestamp is epoch seconds.
type DailyTelemetry struct {
	DeviceID       string  `json:"deviceId" binding:"required"`
	Timestamp      int64   `json:"timestamp" binding:"required"`
	Steps          int     `json:"steps"`
	ActiveCalories float64 `json:"activeCalories"`
	BodyBattery    *int    `json:"bodyBattery"`
	StressAvg      *int    `json:"stressAvg"`
}

// TelemetryService upserts one daily summary row per (account, UTC day).
type TelemetryService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewTelemetryService creates a new TelemetryService instance
func NewTelemetryService(db *gorm.DB, logger *logrus.Logger) *TelemetryService {
	return &TelemetryService{db: db, logger: logger}
}

// IngestDaily validates the device binding and secret, then upserts the
// summary for the payload's UTC day. Returns ErrDeviceNotFound for unknown
// devices and ErrDeviceSecret on a failed secret check; devices registered
// without a secret hash skip the check.
func (s *TelemetryService) IngestDaily(ctx context.Context, payload *DailyTelemetry, secret string) error {
	var device models.GarminDevice
	if err := s.db.WithContext(ctx).First(&device, "device_id = ?", payload.DeviceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrDeviceNotFound
		}
		return err
	}

	if device.SecretHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(device.SecretHash), []byte(secret)); err != nil {
			return ErrDeviceSecret
		}
	}

	// Normalize to midnight UTC for the day key.
	day := time.Unix(payload.Timestamp, 0).UTC().Truncate(24 * time.Hour)

	summary := models.DailySummary{
		UserID:             device.UserID,
		Date:               day,
		Steps:              payload.Steps,
		ActiveCaloriesKcal: payload.ActiveCalories,
		BodyBatteryEvening: payload.BodyBattery,
		StressAvg:          payload.StressAvg,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"steps", "active_calories_kcal", "body_battery_evening", "stress_avg", "updated_at",
		}),
	}).Create(&summary).Error
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"component": "telemetry",
		"device_id": payload.DeviceID,
		"day":       day.Format("2006-01-02"),
	}).Info("daily summary upserted")

	return nil
}
