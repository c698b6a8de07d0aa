package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mealwise/backend/internal/models"
)

// DefaultStatsDays is the window applied when the caller supplies no usable
// day count.
const DefaultStatsDays = 7

const statsCacheTTL = 60 * time.Second

// ParsedNutrition is the lenient view of a stored analysis payload used in
// stats responses. Missing or malformed fields degrade to zero values instead
// of failing aggregation.
type ParsedNutrition struct {
	MealType           string          `json:"meal_type,omitempty"`
	Items              []NutritionItem `json:"items,omitempty"`
	TotalEstimatedKcal *float64        `json:"total_estimated_kcal,omitempty"`
}

// StatsEntry is one food entry in a stats response.
type StatsEntry struct {
	ID             uuid.UUID        `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	ImagePathOrURL string           `json:"imagePathOrUrl"`
	CaptionText    *string          `json:"captionText"`
	AIParsedJSON   *ParsedNutrition `json:"aiParsedJson"`
}

// StatsResponse aggregates a user's food entries over a day window.
type StatsResponse struct {
	TotalMeals  int          `json:"totalMeals"`
	TotalKcal   float64      `json:"totalKcal"`
	FoodEntries []StatsEntry `json:"foodEntries"`
}

// StatsService computes time-windowed nutrition statistics.
type StatsService struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *logrus.Logger
}

// NewStatsService creates a new StatsService. The Redis client is optional;
// when nil, responses are computed fresh on every call.
func NewStatsService(db *gorm.DB, redisClient *redis.Client, logger *logrus.Logger) *StatsService {
	return &StatsService{db: db, redis: redisClient, logger: logger}
}

// GetStats loads the user's food entries in [now-days, now] and aggregates
// total meals and calories. Non-positive day counts are coerced to the
// default, never rejected. Returns ErrUserNotFound when the external identity
// has no account.
func (s *StatsService) GetStats(ctx context.Context, telegramUserID int64, days int) (*StatsResponse, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "telegram_user_id = ?", telegramUserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	cacheKey := fmt.Sprintf("stats:%d:%d", telegramUserID, days)
	if s.redis != nil {
		if data, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached StatsResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	since := time.Now().AddDate(0, 0, -days)

	var entries []models.FoodEntry
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ?", user.ID, since).
		Order("timestamp asc").
		Find(&entries).Error; err != nil {
		return nil, err
	}

	resp := &StatsResponse{
		TotalMeals:  len(entries),
		FoodEntries: make([]StatsEntry, 0, len(entries)),
	}

	for _, entry := range entries {
		parsed := parseStoredNutrition(entry.AIParsedJSON)
		if parsed != nil && parsed.TotalEstimatedKcal != nil {
			resp.TotalKcal += *parsed.TotalEstimatedKcal
		}
		resp.FoodEntries = append(resp.FoodEntries, StatsEntry{
			ID:             entry.ID,
			Timestamp:      entry.Timestamp,
			ImagePathOrURL: entry.ImagePathOrURL,
			CaptionText:    entry.CaptionText,
			AIParsedJSON:   parsed,
		})
	}

	if s.redis != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, statsCacheTTL).Err(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"component": "stats",
					"key":       cacheKey,
					"error":     err.Error(),
				}).Warn("stats cache write failed")
			}
		}
	}

	return resp, nil
}

// parseStoredNutrition decodes a stored analysis payload, tolerating malformed
// or missing content. A payload that cannot be decoded contributes nothing.
func parseStoredNutrition(raw models.AnalysisJSON) *ParsedNutrition {
	if len(raw) == 0 {
		return nil
	}
	var parsed ParsedNutrition
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	return &parsed
}
