package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealwise/backend/internal/models"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, models.AbuseCategoryNotMeal, Classify(SafetyCategoryNotMeal))
	assert.Equal(t, models.AbuseCategoryNudity, Classify(SafetyCategoryNudity))
	assert.Equal(t, models.AbuseCategoryWeapon, Classify(SafetyCategoryWeapon))
	assert.Equal(t, models.AbuseCategoryDrugs, Classify(SafetyCategoryDrugs))

	// Anything unrecognized falls back to OTHER.
	assert.Equal(t, models.AbuseCategoryOther, Classify("SOMETHING_NEW"))
	assert.Equal(t, models.AbuseCategoryOther, Classify(""))
}

func TestIsCounted(t *testing.T) {
	assert.False(t, IsCounted(models.AbuseCategoryNotMeal))
	assert.True(t, IsCounted(models.AbuseCategoryNudity))
	assert.True(t, IsCounted(models.AbuseCategoryWeapon))
	assert.True(t, IsCounted(models.AbuseCategoryOther))
}

func TestRecordAndDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("unresolved identity records event only", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)

		decision, err := svc.RecordAndDecide(ctx, nil, 999, rejectedAnalysis(SafetyCategoryViolence, "graphic violence"))
		require.NoError(t, err)
		assert.Equal(t, DecisionNoAction, decision.Action)

		var events []models.AbuseEvent
		require.NoError(t, db.Find(&events).Error)
		require.Len(t, events, 1)
		assert.Nil(t, events[0].UserID)
		assert.Equal(t, int64(999), events[0].TelegramUserID)
		assert.Equal(t, models.AbuseCategoryViolence, events[0].Category)
	})

	t.Run("counted violation warns with running count", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryWeapon, "weapon in frame"))
		require.NoError(t, err)
		assert.Equal(t, DecisionWarned, decision.Action)
		assert.Equal(t, 1, decision.Count)
		assert.Equal(t, 3, decision.Threshold)
	})

	t.Run("not-meal never counts or warns", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		for i := 0; i < 5; i++ {
			decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryNotMeal, "a cat photo"))
			require.NoError(t, err)
			assert.Equal(t, DecisionNoAction, decision.Action)
		}

		var fresh models.User
		require.NoError(t, db.First(&fresh, "id = ?", user.ID).Error)
		assert.Equal(t, models.UserStatusActive, fresh.Status)

		var count int64
		require.NoError(t, db.Model(&models.AbuseEvent{}).Count(&count).Error)
		assert.Equal(t, int64(5), count)
	})

	t.Run("threshold violation bans", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		for i := 0; i < 2; i++ {
			decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryNudity, "explicit content"))
			require.NoError(t, err)
			assert.Equal(t, DecisionWarned, decision.Action)
		}

		decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryNudity, "explicit content"))
		require.NoError(t, err)
		assert.Equal(t, DecisionBanned, decision.Action)
		assert.Equal(t, 3, decision.Count)

		var fresh models.User
		require.NoError(t, db.First(&fresh, "id = ?", user.ID).Error)
		assert.Equal(t, models.UserStatusBanned, fresh.Status)
	})

	t.Run("banned account stays silent but events keep accruing", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusBanned)

		decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryDrugs, "drug use"))
		require.NoError(t, err)
		assert.Equal(t, DecisionAlreadyBanned, decision.Action)

		var count int64
		require.NoError(t, db.Model(&models.AbuseEvent{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("reason truncated to 500 bytes", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		long := strings.Repeat("x", 600)
		_, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryOther, long))
		require.NoError(t, err)

		var event models.AbuseEvent
		require.NoError(t, db.First(&event).Error)
		assert.Len(t, event.Reason, 500)
	})

	t.Run("truncation never splits a multi-byte character", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		// The two-byte rune straddles the 500-byte cap.
		long := strings.Repeat("x", 499) + "é"
		_, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryOther, long))
		require.NoError(t, err)

		var event models.AbuseEvent
		require.NoError(t, db.First(&event).Error)
		assert.True(t, utf8.ValidString(event.Reason))
		assert.Equal(t, strings.Repeat("x", 499), event.Reason)
	})

	t.Run("deleted account keeps the evidence", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)
		require.NoError(t, db.Delete(&models.User{}, "id = ?", user.ID).Error)

		decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryViolence, "graphic violence"))
		require.NoError(t, err)
		assert.Equal(t, DecisionNoAction, decision.Action)

		var events []models.AbuseEvent
		require.NoError(t, db.Find(&events).Error)
		require.Len(t, events, 1)
		require.NotNil(t, events[0].UserID)
		assert.Equal(t, user.ID, *events[0].UserID)
	})

	t.Run("concurrent violations ban exactly once", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 3)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		for i := 0; i < 2; i++ {
			_, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryViolence, "gore"))
			require.NoError(t, err)
		}

		const n = 4
		decisions := make([]Decision, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryViolence, "gore"))
				require.NoError(t, err)
				decisions[i] = d
			}(i)
		}
		wg.Wait()

		banned := 0
		for _, d := range decisions {
			switch d.Action {
			case DecisionBanned:
				banned++
			case DecisionAlreadyBanned:
			default:
				t.Fatalf("unexpected action %q", d.Action)
			}
		}
		assert.Equal(t, 1, banned)
	})

	t.Run("custom threshold", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewModerationService(db, newTestLogger(), 1)
		user := createTestUser(t, db, 100, models.UserStatusActive)

		decision, err := svc.RecordAndDecide(ctx, user, 100, rejectedAnalysis(SafetyCategoryOther, "abusive caption"))
		require.NoError(t, err)
		assert.Equal(t, DecisionBanned, decision.Action)
	})
}

func TestNewModerationServiceDefaultThreshold(t *testing.T) {
	svc := NewModerationService(nil, newTestLogger(), 0)
	assert.Equal(t, DefaultBanThreshold, svc.Threshold())
}
