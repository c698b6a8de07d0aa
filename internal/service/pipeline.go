package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mealwise/backend/internal/models"
)

// Outbound message texts.
const (
	msgAnalysisFailed = "Sorry, I couldn't analyze your meal. Please try again later."
	msgBanned         = "🚫 Your access to this bot has been blocked due to repeated content policy violations."
	msgNotMeal        = "🤔 That doesn't look like a meal or drink, so I didn't log it."
)

// PhotoJob is one submitted meal photo. User is nil when the external
// identity could not be resolved to an account.
type PhotoJob struct {
	ImageURL       string
	TelegramUserID int64
	ChatID         int64
	Caption        string
	User           *models.User
}

// MealPipeline runs the asynchronous per-photo unit of work: fetch the image,
// analyze it, branch on the verdict, persist, notify. Every handled path ends
// in exactly one outbound message; unhandled failures are converted into the
// generic apology so the user is never left without a response.
type MealPipeline struct {
	db         *gorm.DB
	analyzer   MealAnalyzer
	moderation *ModerationService
	sender     MessageSender
	archiver   PhotoArchiver
	fetcher    *http.Client
	logger     *logrus.Logger
}

// NewMealPipeline creates a new MealPipeline. The archiver is optional; when
// nil the original image URL is persisted as-is.
func NewMealPipeline(
	db *gorm.DB,
	analyzer MealAnalyzer,
	moderation *ModerationService,
	sender MessageSender,
	archiver PhotoArchiver,
	fetchTimeout time.Duration,
	logger *logrus.Logger,
) *MealPipeline {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &MealPipeline{
		db:         db,
		analyzer:   analyzer,
		moderation: moderation,
		sender:     sender,
		archiver:   archiver,
		fetcher:    &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// Enqueue spawns the pipeline for one photo and returns immediately, keeping
// the message-receipt path unblocked.
func (p *MealPipeline) Enqueue(job PhotoJob) {
	go p.Process(context.Background(), job)
}

// Process executes the pipeline synchronously. Exported so tests can run it
// deterministically; production traffic goes through Enqueue.
func (p *MealPipeline) Process(ctx context.Context, job PhotoJob) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"component": "pipeline",
				"chat_id":   job.ChatID,
				"panic":     fmt.Sprintf("%v", r),
			}).Error("recovered from pipeline panic")
			p.send(ctx, job.ChatID, msgAnalysisFailed)
		}
	}()

	p.logger.WithFields(logrus.Fields{
		"component":        "pipeline",
		"telegram_user_id": job.TelegramUserID,
		"image_url":        job.ImageURL,
	}).Info("processing meal photo")

	image, err := p.fetchImage(ctx, job.ImageURL)
	if err != nil {
		// A fetch failure is not evidence of abuse: no moderation recording.
		p.logger.WithFields(logrus.Fields{
			"component": "pipeline",
			"stage":     "fetch",
			"error":     err.Error(),
		}).Warn("image fetch failed")
		p.send(ctx, job.ChatID, msgAnalysisFailed)
		return
	}

	analysis, err := p.analyzer.Analyze(ctx, image, job.Caption)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "pipeline",
			"stage":     "analyze",
			"error":     err.Error(),
		}).Warn("meal analysis failed")
		p.send(ctx, job.ChatID, msgAnalysisFailed)
		return
	}

	if !analysis.Allowed {
		p.handleRejected(ctx, job, analysis)
		return
	}

	imageURL := job.ImageURL
	if p.archiver != nil {
		key := fmt.Sprintf("meal-photos/%s.jpg", uuid.New().String())
		if archived, err := p.archiver.Archive(ctx, image, key); err != nil {
			// Keep the original URL as fallback.
			p.logger.WithFields(logrus.Fields{
				"component": "pipeline",
				"stage":     "archive",
				"error":     err.Error(),
			}).Warn("photo archive failed, keeping original URL")
		} else {
			imageURL = archived
		}
	}

	if job.User == nil {
		// The access gate should never let an unresolved identity reach an
		// allowed verdict; without an account there is nothing to persist to.
		p.send(ctx, job.ChatID, msgAnalysisFailed)
		return
	}

	payload, err := json.Marshal(analysis)
	if err != nil {
		p.send(ctx, job.ChatID, msgAnalysisFailed)
		return
	}

	entry := models.FoodEntry{
		UserID:         job.User.ID,
		Timestamp:      time.Now(),
		ImagePathOrURL: imageURL,
		AIParsedJSON:   models.AnalysisJSON(payload),
	}
	if job.Caption != "" {
		caption := job.Caption
		entry.CaptionText = &caption
	}

	// Durable write before the notification: a crash between the two loses
	// the message, never the entry.
	if err := p.db.WithContext(ctx).Create(&entry).Error; err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "pipeline",
			"stage":     "persist",
			"error":     err.Error(),
		}).Error("food entry insert failed")
		p.send(ctx, job.ChatID, msgAnalysisFailed)
		return
	}

	p.send(ctx, job.ChatID, FormatNutritionSummary(analysis))
}

// handleRejected records the abuse event and sends at most one enforcement
// message. Already-banned accounts stay silent; that choice is fixed, never
// varying between a repeat notice and silence.
func (p *MealPipeline) handleRejected(ctx context.Context, job PhotoJob, analysis *AnalysisResult) {
	decision, err := p.moderation.RecordAndDecide(ctx, job.User, job.TelegramUserID, analysis)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "pipeline",
			"stage":     "moderation",
			"error":     err.Error(),
		}).Error("moderation recording failed")
		p.send(ctx, job.ChatID, msgAnalysisFailed)
		return
	}

	if job.User == nil {
		// Evidence logged against the external identity; no account to notify.
		return
	}

	switch decision.Action {
	case DecisionAlreadyBanned:
		return
	case DecisionBanned:
		p.send(ctx, job.ChatID, msgBanned)
	case DecisionWarned:
		p.send(ctx, job.ChatID, fmt.Sprintf(
			"⚠️ This image or caption violates the bot's content rules.\nViolation %d of %d. After %d violations, access will be blocked.",
			decision.Count, decision.Threshold, decision.Threshold))
	default:
		if decision.Category == models.AbuseCategoryNotMeal {
			p.send(ctx, job.ChatID, msgNotMeal)
		}
	}
}

func (p *MealPipeline) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := p.fetcher.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return data, nil
}

func (p *MealPipeline) send(ctx context.Context, chatID int64, text string) {
	if err := p.sender.SendMessage(ctx, chatID, text); err != nil {
		p.logger.WithFields(logrus.Fields{
			"component": "pipeline",
			"chat_id":   chatID,
			"error":     err.Error(),
		}).Error("outbound message failed")
	}
}
