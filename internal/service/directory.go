package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mealwise/backend/internal/models"
)

// PendingPageSize caps the admin pending-approval listing.
const PendingPageSize = 30

// AccessOutcome is the result of an access request.
type AccessOutcome string

const (
	AccessAlreadyActive  AccessOutcome = "already_active"
	AccessAlreadyPending AccessOutcome = "already_pending"
	AccessCreated        AccessOutcome = "created_pending"
)

// ApproveOutcome is the result of an approval action.
type ApproveOutcome string

const (
	ApproveAlreadyActive ApproveOutcome = "already_active"
	ApproveApproved      ApproveOutcome = "approved"
)

// UserDirectoryService resolves external identities to accounts and manages
// the request/approve access flow.
type UserDirectoryService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewUserDirectoryService creates a new UserDirectoryService instance
func NewUserDirectoryService(db *gorm.DB, logger *logrus.Logger) *UserDirectoryService {
	return &UserDirectoryService{db: db, logger: logger}
}

// Resolve looks up the account for an external identity. Returns
// ErrUserNotFound when none exists.
func (s *UserDirectoryService) Resolve(ctx context.Context, telegramUserID int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "telegram_user_id = ?", telegramUserID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Gate checks whether the identity may perform a user-initiated action.
// Unknown identities get ErrUserNotFound, pending accounts ErrAccessPending,
// banned or otherwise non-active accounts ErrAccessDenied.
func (s *UserDirectoryService) Gate(ctx context.Context, telegramUserID int64) (*models.User, error) {
	user, err := s.Resolve(ctx, telegramUserID)
	if err != nil {
		return nil, err
	}
	switch user.Status {
	case models.UserStatusActive:
		return user, nil
	case models.UserStatusPending:
		return user, ErrAccessPending
	default:
		return user, ErrAccessDenied
	}
}

// RequestAccess registers a pending account for the identity, or reports the
// state of an existing one.
func (s *UserDirectoryService) RequestAccess(ctx context.Context, telegramUserID int64, username string) (AccessOutcome, *models.User, error) {
	user, err := s.Resolve(ctx, telegramUserID)
	if err == nil {
		if user.Status == models.UserStatusActive {
			return AccessAlreadyActive, user, nil
		}
		return AccessAlreadyPending, user, nil
	}
	if err != ErrUserNotFound {
		return "", nil, err
	}

	created := models.User{
		TelegramUserID: telegramUserID,
		Status:         models.UserStatusPending,
	}
	if username != "" {
		created.TelegramUsername = &username
	}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		return "", nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"component":        "directory",
		"telegram_user_id": telegramUserID,
	}).Info("access request registered")

	return AccessCreated, &created, nil
}

// Approve activates a pending account. Returns ErrUserNotFound when the
// identity has no account; an already-active account is reported, not an
// error. Banned accounts are not activated through this path.
func (s *UserDirectoryService) Approve(ctx context.Context, telegramUserID int64) (ApproveOutcome, *models.User, error) {
	user, err := s.Resolve(ctx, telegramUserID)
	if err != nil {
		return "", nil, err
	}
	if user.Status == models.UserStatusActive {
		return ApproveAlreadyActive, user, nil
	}
	if user.Status == models.UserStatusBanned {
		return "", nil, ErrAccessDenied
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("status", models.UserStatusActive).Error; err != nil {
		return "", nil, err
	}
	user.Status = models.UserStatusActive

	s.logger.WithFields(logrus.Fields{
		"component":        "directory",
		"telegram_user_id": telegramUserID,
	}).Info("user approved")

	return ApproveApproved, user, nil
}

// ListPending returns accounts awaiting review, oldest first, capped at
// PendingPageSize.
func (s *UserDirectoryService) ListPending(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.UserStatusPending).
		Order("created_at asc").
		Limit(PendingPageSize).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
