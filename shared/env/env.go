package env

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	TelegramBotToken string
	TelegramChatIDs  []int64
	SystemLogsChatID int64

	SearchAPIURL string
	SearchAPIKey string

	Port string
)

func loadEnvVariable(key string, isRequired bool) string {
	value := os.Getenv(key)
	if isRequired && value == "" {
		log.Fatalf("FATAL: Environment variable %s is required but not set.", key)
	}
	isHidden := key == "TELEGRAM_BOT_TOKEN" || key == "SEARCH_API_KEY"
	if value == "" {
		if !isRequired {
			log.Printf("INFO: Environment variable %s is not set.", key)
		}
	} else if isHidden {
		log.Printf("INFO: Loaded %s (value hidden)", key)
	} else {
		log.Printf("INFO: Loaded %s = %s", key, value)
	}
	return value
}

func loadInt64Env(key string, required bool) int64 {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		if !required {
			return 0
		}
		log.Fatalf("FATAL: Required int64 environment variable %s is missing after load.", key)
		return 0
	}
	id, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		log.Fatalf("FATAL: Failed to parse int64 environment variable %s='%s': %v", key, strValue, err)
	}
	return id
}

// ParseChatIDs splits a comma-separated list of Telegram chat IDs,
// skipping entries that do not parse.
func ParseChatIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("WARN: Skipping invalid chat ID '%s': %v", part, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func LoadEnv() error {
	err := godotenv.Load()
	if err != nil {
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}

	TelegramBotToken = loadEnvVariable("TELEGRAM_BOT_TOKEN", true)

	rawChatIDs := loadEnvVariable("TELEGRAM_CHANNEL_IDS", true)
	TelegramChatIDs = ParseChatIDs(rawChatIDs)
	if len(TelegramChatIDs) == 0 {
		log.Fatalf("FATAL: TELEGRAM_CHANNEL_IDS did not contain any valid chat IDs: '%s'", rawChatIDs)
	}

	SystemLogsChatID = loadInt64Env("SYSTEM_LOGS_CHAT_ID", false)
	if SystemLogsChatID == 0 {
		SystemLogsChatID = TelegramChatIDs[0]
		log.Printf("INFO: SYSTEM_LOGS_CHAT_ID not set, defaulting to first channel %d", SystemLogsChatID)
	}

	SearchAPIURL = loadEnvVariable("SEARCH_API_URL", true)
	SearchAPIKey = loadEnvVariable("SEARCH_API_KEY", true)

	Port = loadEnvVariable("PORT", false)
	if Port == "" {
		Port = "8080"
		log.Printf("INFO: PORT not set, defaulting to %s", Port)
	}

	log.Println("INFO: Environment variables loading process complete.")
	return nil
}
