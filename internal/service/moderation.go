package service

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mealwise/backend/internal/models"
)

// DefaultBanThreshold is the number of counted abuse events after which an
// account is banned.
const DefaultBanThreshold = 3

// maxReasonLen caps the persisted reason text.
const maxReasonLen = 500

// countedAbuseCategories is the single source of truth for which categories
// contribute toward the ban threshold. NOT_MEAL is informational only.
var countedAbuseCategories = map[string]bool{
	models.AbuseCategoryNudity:        true,
	models.AbuseCategorySexualContent: true,
	models.AbuseCategoryViolence:      true,
	models.AbuseCategorySelfHarm:      true,
	models.AbuseCategoryHateSymbols:   true,
	models.AbuseCategoryDrugs:         true,
	models.AbuseCategoryWeapon:        true,
	models.AbuseCategoryOther:         true,
}

// DecisionAction is the outcome of a moderation check.
type DecisionAction string

const (
	DecisionNoAction      DecisionAction = "no_action"
	DecisionWarned        DecisionAction = "warned"
	DecisionBanned        DecisionAction = "banned"
	DecisionAlreadyBanned DecisionAction = "already_banned"
)

// Decision carries the moderation outcome plus the data needed to compose a
// user-facing message.
type Decision struct {
	Action    DecisionAction
	Count     int
	Threshold int
	Category  string
}

// ModerationService records abuse events and applies the progressive
// warn-then-ban policy.
type ModerationService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	threshold int

	// Per-account locks serializing the count-then-act section so two
	// concurrent violations can neither both skip the ban nor both apply it.
	locks sync.Map
}

// NewModerationService creates a new ModerationService. A non-positive
// threshold falls back to DefaultBanThreshold.
func NewModerationService(db *gorm.DB, logger *logrus.Logger, threshold int) *ModerationService {
	if threshold <= 0 {
		threshold = DefaultBanThreshold
	}
	return &ModerationService{db: db, logger: logger, threshold: threshold}
}

// Threshold returns the configured ban threshold.
func (s *ModerationService) Threshold() int { return s.threshold }

// IsCounted reports whether the abuse category contributes toward the ban
// threshold.
func IsCounted(category string) bool {
	return countedAbuseCategories[category]
}

// Classify maps an analyzer safety category to its persisted abuse category.
// Unknown values fall back to OTHER; this never fails.
func Classify(safetyCategory string) string {
	switch safetyCategory {
	case SafetyCategoryNotMeal:
		return models.AbuseCategoryNotMeal
	case SafetyCategoryNudity:
		return models.AbuseCategoryNudity
	case SafetyCategorySexualContent:
		return models.AbuseCategorySexualContent
	case SafetyCategoryViolence:
		return models.AbuseCategoryViolence
	case SafetyCategorySelfHarm:
		return models.AbuseCategorySelfHarm
	case SafetyCategoryHateSymbols:
		return models.AbuseCategoryHateSymbols
	case SafetyCategoryDrugs:
		return models.AbuseCategoryDrugs
	case SafetyCategoryWeapon:
		return models.AbuseCategoryWeapon
	default:
		return models.AbuseCategoryOther
	}
}

// RecordAndDecide appends one AbuseEvent and applies the enforcement policy.
// The event is recorded even when user is nil, against the external identity
// alone; in that case no decision beyond logging is taken. Once an account is
// BANNED, repeated violations always return AlreadyBanned and never re-trigger
// enforcement.
func (s *ModerationService) RecordAndDecide(ctx context.Context, user *models.User, telegramUserID int64, analysis *AnalysisResult) (Decision, error) {
	category := Classify(analysis.Category)
	decision := Decision{
		Action:    DecisionNoAction,
		Threshold: s.threshold,
		Category:  category,
	}

	reason := truncateReason(analysis.Reason, maxReasonLen)

	mu := s.accountLock(telegramUserID)
	mu.Lock()
	defer mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := models.AbuseEvent{
			TelegramUserID: telegramUserID,
			Category:       category,
			Reason:         reason,
		}
		if user != nil {
			id := user.ID
			event.UserID = &id
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		if user == nil {
			return nil
		}

		// Re-read the account inside the transaction so a ban applied by a
		// concurrent pipeline is observed.
		var current models.User
		if err := tx.First(&current, "id = ?", user.ID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				// Account deleted between the gate and here. Keep the event;
				// there is no account left to decide on.
				return nil
			}
			return err
		}

		if current.Status == models.UserStatusBanned {
			decision.Action = DecisionAlreadyBanned
			return nil
		}

		var count int64
		if err := tx.Model(&models.AbuseEvent{}).
			Where("user_id = ? AND category <> ?", user.ID, models.AbuseCategoryNotMeal).
			Count(&count).Error; err != nil {
			return err
		}
		decision.Count = int(count)

		if count >= int64(s.threshold) {
			if err := tx.Model(&models.User{}).
				Where("id = ?", user.ID).
				Update("status", models.UserStatusBanned).Error; err != nil {
				return err
			}
			decision.Action = DecisionBanned
			return nil
		}

		if IsCounted(category) {
			decision.Action = DecisionWarned
		}
		return nil
	})
	if err != nil {
		return Decision{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"component":        "moderation",
		"telegram_user_id": telegramUserID,
		"category":         category,
		"action":           decision.Action,
		"count":            decision.Count,
	}).Info("abuse event recorded")

	return decision, nil
}

func (s *ModerationService) accountLock(telegramUserID int64) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(telegramUserID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// truncateReason caps the reason at max bytes without splitting a multi-byte
// character, so the stored string stays valid UTF-8.
func truncateReason(reason string, max int) string {
	if len(reason) <= max {
		return reason
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}
