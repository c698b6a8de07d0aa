package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/mealwise/backend/config"
	"github.com/mealwise/backend/internal/service"
)

const (
	greetingText = `👋 Welcome to the Nutrition Assistant!

Send me a photo of your meal and I will estimate its nutrition: calories, protein, carbs and fat per item.

⚠️ All numbers are rough AI estimates from a single photo. They are not medical or dietary advice.

Access is approved manually. Tap the button below to request it.`

	privacyText = `🔒 *Privacy*

Photos you send are analyzed to estimate nutrition and may be stored together with the analysis so you can view your stats later. Captions are stored with the photo. Nothing is shared with third parties beyond the AI provider used for the analysis.

To have your data removed, contact the bot administrator.`

	notAuthorizedText  = "🚫 You are not authorized to use this bot. Use /start to request access."
	pendingReviewText  = "⏳ Your access request is pending review. You will be notified once it is approved."
	accessDeniedText   = "🚫 Your access to this bot has been blocked due to repeated content policy violations."
	photoAckText       = "Got your meal photo! I will get back soon with the results."
	requestSentText    = "📨 Your access request has been submitted. You will be notified once it is reviewed."
	requestPendingText = "⏳ You already have a pending access request."
	alreadyActiveText  = "✅ You already have access. Send me a meal photo!"
	approvedText       = "🎉 Your access request has been approved! Send me a meal photo to get started."
	adminOnlyText      = "This command is only available to the administrator."

	requestAccessCallback = "request_access"
	approveUserPrefix     = "approve_user:"
)

// PhotoPipeline accepts meal photo jobs for asynchronous processing.
type PhotoPipeline interface {
	Enqueue(job service.PhotoJob)
}

// Bot bridges Telegram updates to the meal analysis services. It also
// implements service.MessageSender so the pipeline and admin API can notify
// users through the same connection.
type Bot struct {
	api       *tgbotapi.BotAPI
	directory *service.UserDirectoryService
	pipeline  PhotoPipeline
	logger    *logrus.Logger

	adminTelegramID int64
	adminChatID     int64
}

// New connects to the Telegram Bot API and returns a ready Bot. The photo
// pipeline is attached later via SetPipeline because the pipeline needs the
// bot as its message sender.
func New(cfg *config.Config, directory *service.UserDirectoryService, logger *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	logger.WithField("username", api.Self.UserName).Info("telegram bot authorized")

	return &Bot{
		api:             api,
		directory:       directory,
		logger:          logger,
		adminTelegramID: cfg.AdminTelegramID,
		adminChatID:     cfg.AdminChatID,
	}, nil
}

// SetPipeline attaches the photo processing pipeline.
func (b *Bot) SetPipeline(p PhotoPipeline) {
	b.pipeline = p
}

// SendMessage implements service.MessageSender.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// Run consumes Telegram updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithField("panic", r).Error("recovered while handling telegram update")
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && len(update.Message.Photo) > 0:
		b.handlePhoto(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendStart(ctx, msg.Chat.ID)
	case "privacy":
		_ = b.SendMessage(ctx, msg.Chat.ID, privacyText)
	case "pending_approval":
		b.handlePendingApproval(ctx, msg)
	}
}

func (b *Bot) sendStart(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, greetingText)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 Submit access request", requestAccessCallback),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WithError(err).Error("failed to send greeting")
	}
}

func (b *Bot) handlePendingApproval(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID != b.adminTelegramID {
		_ = b.SendMessage(ctx, msg.Chat.ID, adminOnlyText)
		return
	}

	users, err := b.directory.ListPending(ctx)
	if err != nil {
		b.logger.WithError(err).Error("failed to list pending users")
		_ = b.SendMessage(ctx, msg.Chat.ID, "Failed to load pending requests.")
		return
	}
	if len(users) == 0 {
		_ = b.SendMessage(ctx, msg.Chat.ID, "No pending access requests.")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, user := range users {
		label := strconv.FormatInt(user.TelegramUserID, 10)
		if user.TelegramUsername != nil {
			label = fmt.Sprintf("@%s (%d)", *user.TelegramUsername, user.TelegramUserID)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"✅ "+label,
				approveUserPrefix+strconv.FormatInt(user.TelegramUserID, 10),
			),
		))
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Pending access requests (%d):", len(users)))
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(out); err != nil {
		b.logger.WithError(err).Error("failed to send pending list")
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	telegramUserID := msg.From.ID

	user, err := b.directory.Gate(ctx, telegramUserID)
	if err != nil {
		notice, ok := gateNotice(err)
		if !ok {
			b.logger.WithError(err).Error("failed to gate photo sender")
			return
		}
		_ = b.SendMessage(ctx, msg.Chat.ID, notice)
		return
	}

	if b.pipeline == nil {
		b.logger.Error("photo received before pipeline was attached")
		return
	}

	// Telegram orders photo sizes smallest first.
	photo := msg.Photo[len(msg.Photo)-1]
	imageURL, err := b.api.GetFileDirectURL(photo.FileID)
	if err != nil {
		b.logger.WithError(err).Error("failed to resolve photo file URL")
		_ = b.SendMessage(ctx, msg.Chat.ID, "Sorry, I couldn't download your photo. Please try again.")
		return
	}

	_ = b.SendMessage(ctx, msg.Chat.ID, photoAckText)

	b.pipeline.Enqueue(service.PhotoJob{
		ImageURL:       imageURL,
		TelegramUserID: telegramUserID,
		ChatID:         msg.Chat.ID,
		Caption:        msg.Caption,
		User:           user,
	})
}

// gateNotice maps an access-gate rejection to the reply sent back to the
// sender. Every gate error has a user-visible denial; only unexpected errors
// report false.
func gateNotice(err error) (string, bool) {
	switch err {
	case service.ErrUserNotFound:
		return notAuthorizedText, true
	case service.ErrAccessPending:
		return pendingReviewText, true
	case service.ErrAccessDenied:
		return accessDeniedText, true
	}
	return "", false
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.WithError(err).Warn("failed to acknowledge callback")
	}

	switch {
	case cq.Data == requestAccessCallback:
		b.handleAccessRequest(ctx, cq)
	case strings.HasPrefix(cq.Data, approveUserPrefix):
		b.handleApprove(ctx, cq)
	}
}

func (b *Bot) handleAccessRequest(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	outcome, user, err := b.directory.RequestAccess(ctx, cq.From.ID, cq.From.UserName)
	if err != nil {
		b.logger.WithError(err).Error("failed to register access request")
		_ = b.SendMessage(ctx, chatID, "Sorry, something went wrong. Please try again later.")
		return
	}

	switch outcome {
	case service.AccessAlreadyActive:
		_ = b.SendMessage(ctx, chatID, alreadyActiveText)
	case service.AccessAlreadyPending:
		_ = b.SendMessage(ctx, chatID, requestPendingText)
	case service.AccessCreated:
		_ = b.SendMessage(ctx, chatID, requestSentText)
		b.notifyAdminOfRequest(ctx, user.TelegramUserID, cq.From.UserName)
	}
}

func (b *Bot) notifyAdminOfRequest(ctx context.Context, telegramUserID int64, username string) {
	if b.adminChatID == 0 {
		return
	}
	who := strconv.FormatInt(telegramUserID, 10)
	if username != "" {
		who = fmt.Sprintf("@%s (%d)", username, telegramUserID)
	}
	msg := tgbotapi.NewMessage(b.adminChatID, "🆕 New access request from "+who)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"✅ Approve",
				approveUserPrefix+strconv.FormatInt(telegramUserID, 10),
			),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.WithError(err).Error("failed to notify admin of access request")
	}
}

func (b *Bot) handleApprove(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	if cq.From.ID != b.adminTelegramID {
		_ = b.SendMessage(ctx, chatID, adminOnlyText)
		return
	}

	telegramUserID, err := strconv.ParseInt(strings.TrimPrefix(cq.Data, approveUserPrefix), 10, 64)
	if err != nil {
		b.logger.WithField("data", cq.Data).Warn("malformed approve callback")
		return
	}

	outcome, user, err := b.directory.Approve(ctx, telegramUserID)
	if err != nil {
		switch err {
		case service.ErrUserNotFound:
			_ = b.SendMessage(ctx, chatID, "That user no longer has an access request.")
		case service.ErrAccessDenied:
			_ = b.SendMessage(ctx, chatID, "That user is banned and cannot be approved.")
		default:
			b.logger.WithError(err).Error("failed to approve user")
			_ = b.SendMessage(ctx, chatID, "Failed to approve the user. Please try again.")
		}
		return
	}

	if outcome == service.ApproveAlreadyActive {
		_ = b.SendMessage(ctx, chatID, "User is already approved.")
		return
	}

	_ = b.SendMessage(ctx, chatID, fmt.Sprintf("✅ Approved user %d.", user.TelegramUserID))
	_ = b.SendMessage(ctx, user.TelegramUserID, approvedText)
}
