package telegram_bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/models"
	"backend/internal/repository"
)

// Bot announces freshly generated debates to a Telegram channel and
// answers a small set of status commands. A nil *Bot is a valid disabled
// bot; all methods are no-ops on it.
type Bot struct {
	api          *tgbotapi.BotAPI
	channelID    int64
	debateRepo   repository.DebateRepository
	settingsRepo repository.SettingsRepository
	logger       *zap.Logger
}

// NewBot creates the bot, or (nil, nil) when the integration is disabled.
func NewBot(cfg *config.Config, debateRepo repository.DebateRepository, settingsRepo repository.SettingsRepository, logger *zap.Logger) (*Bot, error) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		logger.Info("Telegram bot is disabled (telegram.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	return &Bot{
		api:          botAPI,
		channelID:    cfg.Telegram.ChannelID,
		debateRepo:   debateRepo,
		settingsRepo: settingsRepo,
		logger:       logger,
	}, nil
}

// AnnounceDebate posts a summary card for a finished debate to the
// configured channel.
func (b *Bot) AnnounceDebate(debate *models.Debate) {
	if b == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⚖️ Новые дебаты: %s\n\n", debate.Title))
	sb.WriteString(debate.Summary)
	sb.WriteString(fmt.Sprintf("\n\nИндекс абсурда: %.0f/100", debate.SeverityScore))
	if len(debate.Tags) > 0 {
		sb.WriteString("\n")
		for _, tag := range debate.Tags {
			sb.WriteString("#" + tag + " ")
		}
	}

	msg := tgbotapi.NewMessage(b.channelID, sb.String())
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to announce debate",
			zap.String("debate_id", debate.ID),
			zap.Error(err))
		return
	}
	b.logger.Info("Debate announced", zap.String("debate_id", debate.ID))
}

// Start begins listening for updates from Telegram and blocks until ctx
// is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b == nil {
		return nil
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			if update.Message != nil && update.Message.IsCommand() {
				b.handleCommand(update.Message)
			}
		}
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "status":
		b.replyStatus(msg.Chat.ID)
	case "start", "help":
		b.send(msg.Chat.ID, "Команды:\n/status — состояние планировщика и статистика")
	}
}

func (b *Bot) replyStatus(chatID int64) {
	state, err := b.settingsRepo.Read()
	if err != nil {
		b.logger.Error("Failed to read scheduler state for /status", zap.Error(err))
		b.send(chatID, "❌ Не удалось получить состояние")
		return
	}

	stats, err := b.debateRepo.Stats()
	if err != nil {
		b.logger.Error("Failed to read stats for /status", zap.Error(err))
		b.send(chatID, "❌ Не удалось получить статистику")
		return
	}

	lastRun := "никогда"
	if state.LastRunAt != nil {
		lastRun = state.LastRunAt.Format("2006-01-02 15:04")
	}

	text := fmt.Sprintf("Планировщик: enabled=%t, окно=%s\nПоследний запуск: %s (%s)\nДебатов: %d, сообщений: %d, подтверждений: %d",
		state.WorkerEnabled, state.RunWindow, lastRun, state.LastRunStatus,
		stats.TotalDebates, stats.TotalMessages, stats.TotalConfirmations)
	b.send(chatID, text)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("Failed to send Telegram message", zap.Error(err))
	}
}
