package bot

import (
	"ca-monitor/agent/internal/dispatch"
	"ca-monitor/agent/internal/engine"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/shared/logger"
	"ca-monitor/shared/notifications"
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var appLogger *logger.Logger
var botInstance *tgbotapi.BotAPI
var tokenEngine *engine.Engine
var dispatcher *dispatch.Dispatcher
var reg *registry.Registry

func InitializeBot(logInstance *logger.Logger, eng *engine.Engine, disp *dispatch.Dispatcher, registryInstance *registry.Registry) error {
	if logInstance == nil {
		fmt.Println("FATAL ERROR: InitializeBot requires a non-nil logger instance")
		return fmt.Errorf("logger instance provided to InitializeBot is nil")
	}
	appLogger = logInstance
	tokenEngine = eng
	dispatcher = disp
	reg = registryInstance
	botInstance = notifications.GetBotInstance()
	if botInstance == nil {
		appLogger.Error("Could not retrieve initialized Telegram bot instance from notifications package. Bot may not function.")
		return fmt.Errorf("failed to get tgbotapi bot instance")
	}
	appLogger.Info("Telegram bot interaction services initialized using go-telegram-bot-api/v5.")
	return nil
}

func StartListening(ctx context.Context) {
	if appLogger == nil {
		fmt.Println("ERROR: Logger not initialized for bot listener. Cannot start.")
		return
	}
	if botInstance == nil {
		appLogger.Warn("Bot API instance not available. Cannot start command listener.")
		return
	}
	appLogger.Info("Starting bot message/command listener (go-telegram-bot-api/v5)...")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := botInstance.GetUpdatesChan(u)
	appLogger.Info("Listening for Telegram commands and messages...")

	for {
		select {
		case update := <-updates:
			msg := update.Message
			if msg == nil {
				msg = update.ChannelPost
			}
			if msg == nil {
				continue
			}

			if msg.IsCommand() {
				go HandleCommand(msg)
				continue
			}

			text := msg.Text
			if text == "" {
				text = msg.Caption
			}
			if text == "" {
				continue
			}
			go tokenEngine.HandleMessage(ctx, msg.Chat.ID, text, msg.Time())

		case <-ctx.Done():
			appLogger.Info("Context cancelled. Stopping Telegram listener.")
			return
		}
	}
}
