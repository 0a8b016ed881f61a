package notifications

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

var bot *tgbotapi.BotAPI
var isInitialized bool = false
var systemLogsChatID int64
var telegramLimiter *rate.Limiter

// InitTelegramBot initializes the shared bot API instance and the global
// outbound rate limiter. Safe to call more than once.
func InitTelegramBot(botToken string, logsChatID int64) error {
	if isInitialized && bot != nil {
		log.Println("INFO: Telegram bot already initialized.")
		return nil
	}

	isInitialized = false
	bot = nil
	telegramLimiter = nil

	if botToken == "" {
		return fmt.Errorf("critical error: TELEGRAM_BOT_TOKEN missing from env configuration")
	}

	log.Println("Initializing Telegram bot API...")
	var err error

	bot, err = tgbotapi.NewBotAPI(botToken)
	if err != nil {
		bot = nil
		return fmt.Errorf("failed to initialize Telegram bot API: %w", err)
	}
	log.Println("Verifying bot token with Telegram API (GetMe)...")
	userInfo, err := bot.GetMe()
	if err != nil {
		bot = nil
		return fmt.Errorf("failed to verify bot token with GetMe API call: %w", err)
	}
	isInitialized = true
	systemLogsChatID = logsChatID
	telegramLimiter = rate.NewLimiter(rate.Limit(0.5), 1)
	log.Printf("Telegram bot initialized successfully for @%s", userInfo.UserName)

	return nil
}

func GetBotInstance() *tgbotapi.BotAPI {
	if !isInitialized || bot == nil {
		log.Println("WARN: GetBotInstance called but bot is not initialized or initialization failed.")
	}
	return bot
}

// SendToChat delivers a Markdown message to the given chat. Fire and
// forget: delivery failures are logged and dropped after the internal
// retries are exhausted.
func SendToChat(chatID int64, message string) {
	sendMessageWithRetry(chatID, message)
}

// SendSystemLogMessage delivers operational log lines to the configured
// system-log chat.
func SendSystemLogMessage(message string) {
	sendMessageWithRetry(systemLogsChatID, message)
}

func sendMessageWithRetry(chatID int64, text string) {
	if telegramLimiter != nil {
		if err := telegramLimiter.Wait(context.Background()); err != nil {
			log.Printf("ERROR: Telegram rate limiter wait error for chat %d: %v. Proceeding with send attempt...", chatID, err)
		}
	}
	if bot == nil {
		log.Println("ERROR: Cannot send message, Telegram bot is not initialized.")
		return
	}
	if chatID == 0 {
		log.Println("ERROR: Cannot send message, target chatID is 0.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	maxRetries := 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		_, err := bot.Send(msg)
		if err == nil {
			return
		}

		lastErr = err

		if tgErr, ok := err.(*tgbotapi.Error); ok {
			log.Printf("ERROR: Failed Telegram send (Attempt %d/%d) to chat %d: API Err %d - %s",
				i+1, maxRetries, chatID, tgErr.Code, tgErr.Message)

			if tgErr.Code == 429 {
				retryAfter := tgErr.RetryAfter
				if retryAfter <= 0 {
					retryAfter = 1
				}
				log.Printf("INFO: Telegram API rate limit hit (429). Retrying after %d seconds...", retryAfter)
				time.Sleep(time.Duration(retryAfter) * time.Second)
				continue
			}
		} else {
			log.Printf("ERROR: Failed Telegram send (Attempt %d/%d) to chat %d: %v",
				i+1, maxRetries, chatID, err)
		}

		if i < maxRetries-1 {
			waitDuration := time.Duration(math.Pow(2, float64(i))) * time.Second
			if waitDuration < time.Second {
				waitDuration = time.Second
			}
			time.Sleep(waitDuration)
		}
	}
	log.Printf("ERROR: Telegram message to chat %d failed to send after %d retries. Last Error: %v", chatID, maxRetries, lastErr)
}

func EscapeMarkdownV2(s string) string {
	charsToEscape := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	temp := s
	for _, char := range charsToEscape {
		temp = strings.ReplaceAll(temp, char, "\\"+char)
	}
	return temp
}
