package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mealwise/backend/internal/models"
)

func createTestDevice(t *testing.T, db *gorm.DB, user *models.User, deviceID, secret string) {
	t.Helper()

	device := &models.GarminDevice{
		DeviceID: deviceID,
		UserID:   user.ID,
	}
	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
		require.NoError(t, err)
		device.SecretHash = string(hash)
	}
	require.NoError(t, db.Create(device).Error)
}

func TestIngestDaily(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown device", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewTelemetryService(db, newTestLogger())

		err := svc.IngestDaily(ctx, &DailyTelemetry{DeviceID: "nope", Timestamp: time.Now().Unix()}, "")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("wrong secret", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewTelemetryService(db, newTestLogger())
		user := createTestUser(t, db, 100, models.UserStatusActive)
		createTestDevice(t, db, user, "watch-1", "s3cret")

		err := svc.IngestDaily(ctx, &DailyTelemetry{DeviceID: "watch-1", Timestamp: time.Now().Unix()}, "wrong")
		assert.ErrorIs(t, err, ErrDeviceSecret)
	})

	t.Run("device without secret skips check", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewTelemetryService(db, newTestLogger())
		user := createTestUser(t, db, 100, models.UserStatusActive)
		createTestDevice(t, db, user, "watch-1", "")

		err := svc.IngestDaily(ctx, &DailyTelemetry{DeviceID: "watch-1", Timestamp: time.Now().Unix(), Steps: 5000}, "")
		require.NoError(t, err)
	})

	t.Run("upserts one row per UTC day", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewTelemetryService(db, newTestLogger())
		user := createTestUser(t, db, 100, models.UserStatusActive)
		createTestDevice(t, db, user, "watch-1", "s3cret")

		ts := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
		bb := 60
		err := svc.IngestDaily(ctx, &DailyTelemetry{
			DeviceID:       "watch-1",
			Timestamp:      ts.Unix(),
			Steps:          4000,
			ActiveCalories: 210,
			BodyBattery:    &bb,
		}, "s3cret")
		require.NoError(t, err)

		// Later payload for the same day replaces the values.
		err = svc.IngestDaily(ctx, &DailyTelemetry{
			DeviceID:       "watch-1",
			Timestamp:      ts.Add(10 * time.Hour).Unix(),
			Steps:          9500,
			ActiveCalories: 480,
		}, "s3cret")
		require.NoError(t, err)

		var summaries []models.DailySummary
		require.NoError(t, db.Find(&summaries).Error)
		require.Len(t, summaries, 1)
		assert.Equal(t, user.ID, summaries[0].UserID)
		assert.Equal(t, 9500, summaries[0].Steps)
		assert.Equal(t, float64(480), summaries[0].ActiveCaloriesKcal)
		assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), summaries[0].Date.UTC())

		// A payload crossing midnight UTC lands on the next day.
		err = svc.IngestDaily(ctx, &DailyTelemetry{
			DeviceID:  "watch-1",
			Timestamp: ts.Add(16 * time.Hour).Unix(),
			Steps:     100,
		}, "s3cret")
		require.NoError(t, err)

		require.NoError(t, db.Find(&summaries).Error)
		assert.Len(t, summaries, 2)
	})
}
