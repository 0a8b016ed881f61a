package bot

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const defaultSleepMinutes = 60

func HandleCommand(msg *tgbotapi.Message) {
	command := msg.Command()
	args := msg.CommandArguments()

	if appLogger == nil {
		log.Printf("ERROR: appLogger not initialized in bot package when handling command '%s'", command)
		return
	}

	appLogger.Info("Processing command",
		zap.String("command", command),
		zap.String("args", args),
		zap.Int64("ChatID", msg.Chat.ID),
	)

	switch command {
	case "mode":
		handleModeCommand(msg, args)
	case "status":
		handleStatusCommand(msg)
	case "top":
		handleTopCommand(msg)
	case "sleep":
		handleSleepCommand(msg, args)
	case "wake":
		handleWakeCommand(msg)
	case "restart":
		handleRestartCommand(msg)
	case "start", "help":
		handleHelpCommand(msg)
	default:
		appLogger.Warn("Unknown command received", zap.String("command", command))
		SendReply(msg.Chat.ID, fmt.Sprintf("Unknown command: /%s", command))
	}
}

func handleModeCommand(msg *tgbotapi.Message, args string) {
	mode := strings.ToLower(strings.TrimSpace(args))
	if mode == "" {
		SendReply(msg.Chat.ID, fmt.Sprintf("Current notification mode: `%s`\nUsage: /mode {legacy|leaderboard}", dispatcher.Mode()))
		return
	}
	if !dispatcher.SetMode(mode) {
		SendReply(msg.Chat.ID, fmt.Sprintf("Unknown mode `%s`. Valid modes: legacy, leaderboard.", mode))
		return
	}
	SendReply(msg.Chat.ID, fmt.Sprintf("Notification mode set to `%s`.", dispatcher.Mode()))
}

func handleStatusCommand(msg *tgbotapi.Message) {
	now := time.Now()
	control := tokenEngine.Control()

	var b strings.Builder
	b.WriteString("*Monitor Status*\n")
	fmt.Fprintf(&b, "Mode: `%s`\n", dispatcher.Mode())
	if control.Sleeping() {
		fmt.Fprintf(&b, "Detection: paused until %s\n", control.SleepUntilString())
	} else {
		b.WriteString("Detection: active\n")
	}
	fmt.Fprintf(&b, "Tracked tokens (all chats): %d\n", reg.ActiveCount(0))

	ranked := reg.RankedActive(msg.Chat.ID)
	if len(ranked) == 0 {
		b.WriteString("\nNo active tokens in this chat.")
		SendReply(msg.Chat.ID, b.String())
		return
	}

	fmt.Fprintf(&b, "\n*Active in this chat (%d):*\n", len(ranked))
	shown := ranked
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for i, st := range shown {
		fmt.Fprintf(&b, "%d. %s - %.1f avg/hr - %s - %d mentions\n",
			i+1, st.DisplayName(), st.AverageMentionRate(now), st.MonitoringTimeString(now), st.RunningTotal)
	}
	if len(ranked) > len(shown) {
		fmt.Fprintf(&b, "...and %d more\n", len(ranked)-len(shown))
	}
	SendReply(msg.Chat.ID, b.String())
}

func handleTopCommand(msg *tgbotapi.Message) {
	if dispatcher.SendLeaderboard(msg.Chat.ID) == 0 {
		SendReply(msg.Chat.ID, "No active tokens to rank right now.")
	}
}

func handleSleepCommand(msg *tgbotapi.Message, args string) {
	minutes := defaultSleepMinutes
	if trimmed := strings.TrimSpace(args); trimmed != "" {
		parsed, err := strconv.Atoi(trimmed)
		if err != nil || parsed <= 0 {
			SendReply(msg.Chat.ID, "Usage: /sleep {minutes}")
			return
		}
		minutes = parsed
	}

	until := tokenEngine.Control().SleepFor(time.Duration(minutes) * time.Minute)
	appLogger.Info("Token detection paused", zap.Int("minutes", minutes), zap.Time("until", until))
	SendReply(msg.Chat.ID, fmt.Sprintf("Token detection paused for %d minutes (until %s). Active sessions keep running.", minutes, until.UTC().Format("15:04 UTC")))
}

func handleWakeCommand(msg *tgbotapi.Message) {
	control := tokenEngine.Control()
	if !control.Sleeping() {
		SendReply(msg.Chat.ID, "Token detection is already active.")
		return
	}
	control.Resume()
	appLogger.Info("Token detection resumed", zap.Int64("chatID", msg.Chat.ID))
	SendReply(msg.Chat.ID, "Token detection resumed.")
}

func handleRestartCommand(msg *tgbotapi.Message) {
	SendReply(msg.Chat.ID, "Restarting...")
	appLogger.Warn("Restart requested via command", zap.Int64("chatID", msg.Chat.ID))
	time.Sleep(1 * time.Second)

	executable, err := os.Executable()
	if err != nil {
		appLogger.Error("Restart failed: cannot resolve executable path", zap.Error(err))
		SendReply(msg.Chat.ID, "Restart failed.")
		return
	}
	if err := syscall.Exec(executable, os.Args, os.Environ()); err != nil {
		appLogger.Error("Restart failed: exec error", zap.Error(err))
		SendReply(msg.Chat.ID, "Restart failed.")
	}
}

func handleHelpCommand(msg *tgbotapi.Message) {
	helpText := `Available commands:
/mode {legacy|leaderboard} - Switch notification mode (no argument shows current).
/status - Show mode, pause state, and active tokens in this chat.
/top - Send the leaderboard for this chat now.
/sleep {minutes} - Pause new token detection (default 60 minutes).
/wake - Resume token detection.
/restart - Restart the bot process.
/help - Show this help message.`
	SendReply(msg.Chat.ID, helpText)
}

func SendReply(chatID int64, text string) {
	if botInstance == nil {
		log.Println("ERROR: Cannot send reply, bot is not initialized.")
		if appLogger != nil {
			appLogger.Error("Cannot send reply, bot is not initialized.")
		}
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := botInstance.Send(msg); err != nil {
		if appLogger != nil {
			appLogger.Error("Failed to send reply message", zap.Error(err), zap.Int64("chatID", chatID))
		} else {
			log.Printf("ERROR: Failed to send reply: %v", err)
		}
	}
}
