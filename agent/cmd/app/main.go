package main

import (
	"ca-monitor/agent/internal/bot"
	"ca-monitor/agent/internal/dispatch"
	"ca-monitor/agent/internal/engine"
	"ca-monitor/agent/internal/handlers"
	"ca-monitor/agent/internal/mentions"
	"ca-monitor/agent/internal/metadata"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/agent/internal/sink"
	"ca-monitor/shared/config"
	"ca-monitor/shared/env"
	"ca-monitor/shared/logger"
	"ca-monitor/shared/notifications"
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func startHeartbeat(appLogger *logger.Logger) {
	go func() {
		ticker := time.NewTicker(8 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			appLogger.Info("Heartbeat: Program running...")
		}
	}()
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Panicf("FATAL PANIC RECOVERY: %v", r)
		}
	}()

	if err := env.LoadEnv(); err != nil {
		log.Fatalf("FATAL: Failed to load environment variables: %v", err)
	}
	log.Println("INFO: Environment variables loaded via shared/env.")

	appLogger := mustInitLogger()
	appLogger.Info("Application logger initialized successfully.")

	log.Println("INFO: Initializing Telegram notifications...")
	if err := notifications.InitTelegramBot(env.TelegramBotToken, env.SystemLogsChatID); err != nil {
		log.Printf("WARN: Failed to initialize Telegram Bot, proceeding without Telegram features: %v", err)
	} else {
		log.Println("INFO: Telegram notifications initialized (if enabled and configured).")
	}

	appLogger.Info("Loading application configuration...")
	cfg, errCfg := config.LoadConfig("agent/config.yaml")
	if errCfg != nil {
		appLogger.Fatal("Failed to load agent/config.yaml", zap.Error(errCfg))
	}
	config.SetGlobalConfig(cfg)
	appLogger.Info("Application configuration loaded.")

	if env.SearchAPIURL == "" || env.SearchAPIKey == "" {
		appLogger.Fatal("SEARCH_API_URL and SEARCH_API_KEY must both be set. The monitor cannot poll mentions without them.")
	}

	appLogger.Info("Initializing core services...")
	reg := registry.New(appLogger)
	resolver := metadata.NewResolver(
		cfg.Metadata.DexScreenerURL,
		cfg.Metadata.JupiterURL,
		time.Duration(cfg.Metadata.TimeoutSeconds)*time.Second,
		appLogger,
	)
	searcher := mentions.NewClient(env.SearchAPIURL, env.SearchAPIKey, appLogger)
	records := sink.NewCSVSink(cfg.Sink.Directory, appLogger)

	pollInterval := time.Duration(cfg.Monitor.PollIntervalMin) * time.Second
	dispatcher := dispatch.New(
		reg,
		notifications.SendToChat,
		appLogger,
		cfg.Dispatch.DefaultMode,
		cfg.Leaderboard.TopN,
		cfg.Dispatch.BatchTopN,
		cfg.Monitor.DurationHours,
		pollInterval,
	)
	control := engine.NewControl()
	tokenEngine := engine.New(reg, resolver, dispatcher, searcher, records, control, cfg, env.TelegramChatIDs, appLogger)
	appLogger.Info("Core services initialized.")

	ctx := context.Background()

	appLogger.Info("Starting leaderboard broadcaster...")
	broadcaster := dispatch.NewBroadcaster(dispatcher, reg, env.TelegramChatIDs, cfg.Leaderboard.Interval(), control, appLogger)
	go broadcaster.Run(ctx)

	appLogger.Info("Initializing Telegram Bot command listener...")
	if err := bot.InitializeBot(appLogger, tokenEngine, dispatcher, reg); err != nil {
		appLogger.Error("Failed to initialize Telegram Bot listener", zap.Error(err))
	} else {
		appLogger.Info("Telegram Bot command listener initialized.")
	}

	appLogger.Info("Setting up web server...")
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))
	appLogger.Info("CORS middleware configured.")

	handlers.RegisterRoutes(router, appLogger)
	handlers.RegisterAPIRoutes(router, appLogger, reg, dispatcher, control)
	appLogger.Info("Web server and API routes registered.")

	go func() {
		serverAddr := ":" + env.Port
		appLogger.Info("Starting web server", zap.String("address", serverAddr))
		if err := router.Run(serverAddr); err != nil {
			appLogger.Fatal("Could not start web server.", zap.Error(err))
		}
	}()

	appLogger.Info("Starting heartbeat monitor.")
	startHeartbeat(appLogger)

	if notifications.GetBotInstance() != nil {
		appLogger.Info("Starting Telegram Bot message listener...")
		go bot.StartListening(ctx)
	} else {
		appLogger.Warn("Telegram Bot listener not started because bot initialization failed or was skipped.")
	}

	appLogger.Info("Application startup complete. Waiting for events...")
	select {}
}

func mustInitLogger() *logger.Logger {
	log.Println("INFO: Initializing application logger.")
	enableTelegramLogging := env.TelegramBotToken != "" && env.SystemLogsChatID != 0
	loggerCfg := logger.Config{
		Level:          "info",
		Environment:    "production",
		EnableTelegram: enableTelegramLogging,
	}
	appLogger, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	return appLogger
}
