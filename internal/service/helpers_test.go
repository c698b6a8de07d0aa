package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mealwise/backend/internal/database"
	"github.com/mealwise/backend/internal/models"
)

// newTestDB opens a fresh in-memory database with the full schema. The named
// shared-cache DSN plus a single connection keeps every session on the same
// database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func createTestUser(t *testing.T, db *gorm.DB, telegramUserID int64, status string) *models.User {
	t.Helper()

	user := &models.User{
		TelegramUserID: telegramUserID,
		Status:         status,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// fakeSender records outbound messages.
type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

type sentMessage struct {
	ChatID int64
	Text   string
}

func (s *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (s *fakeSender) sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sentMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// fakeAnalyzer returns a fixed result or error.
type fakeAnalyzer struct {
	result *AnalysisResult
	err    error
}

func (a *fakeAnalyzer) Analyze(context.Context, []byte, string) (*AnalysisResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func allowedAnalysis() *AnalysisResult {
	return &AnalysisResult{
		Allowed:  true,
		Reason:   "A bowl of oatmeal with banana",
		Category: SafetyCategoryOK,
		MealType: MealTypeBreakfast,
		Items: []NutritionItem{
			{Name: "Oatmeal", PortionGrams: 250, EnergyKcal: 180, ProteinG: 6, CarbsG: 32, FatG: 3},
			{Name: "Banana", PortionGrams: 120, EnergyKcal: 105, ProteinG: 1, CarbsG: 27, FatG: 0},
		},
		TotalEstimatedKcal: 285,
	}
}

func rejectedAnalysis(category, reason string) *AnalysisResult {
	return &AnalysisResult{
		Allowed:            false,
		Reason:             reason,
		Category:           category,
		MealType:           MealTypeUnknown,
		Items:              []NutritionItem{},
		TotalEstimatedKcal: 0,
	}
}
