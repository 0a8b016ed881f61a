package config

import (
	"log"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// MonitorConfig holds the per-token monitoring session tunables.
type MonitorConfig struct {
	DurationHours    int `mapstructure:"duration_hours"`
	PollIntervalMin  int `mapstructure:"poll_interval_min"`
	PollIntervalMax  int `mapstructure:"poll_interval_max"`
	InitialLimit     int `mapstructure:"initial_limit"`
	IncrementalLimit int `mapstructure:"incremental_limit"`
}

// LeaderboardConfig holds the periodic broadcaster tunables.
type LeaderboardConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	TopN            int `mapstructure:"top_n"`
}

// Config defines the global configuration structure.
type Config struct {
	App struct {
		Port        string `mapstructure:"port"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"app"`

	Logging struct {
		Level          string `mapstructure:"level"`
		EnableTelegram bool   `mapstructure:"enable_telegram"`
	} `mapstructure:"logging"`

	Monitor     MonitorConfig     `mapstructure:"monitor"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`

	Dispatch struct {
		DefaultMode string `mapstructure:"default_mode"`
		BatchTopN   int    `mapstructure:"batch_top_n"`
	} `mapstructure:"dispatch"`

	Metadata struct {
		DexScreenerURL string `mapstructure:"dexscreener_url"`
		JupiterURL     string `mapstructure:"jupiter_url"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"metadata"`

	Sink struct {
		Directory string `mapstructure:"directory"`
	} `mapstructure:"sink"`
}

var (
	globalConfig *Config
	configLock   sync.RWMutex
)

// Duration returns the monitoring window as a time.Duration.
func (m MonitorConfig) Duration() time.Duration {
	return time.Duration(m.DurationHours) * time.Hour
}

// Interval returns the broadcaster firing interval.
func (l LeaderboardConfig) Interval() time.Duration {
	return time.Duration(l.IntervalSeconds) * time.Second
}

// LoadConfig loads configuration from the specified file path and merges it
// with environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	log.Printf("Starting to load configuration from file: %s", path)

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	viper.BindEnv("app.port", "PORT")
	viper.BindEnv("app.environment", "ENVIRONMENT")
	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("sink.directory", "SINK_DIRECTORY")

	setDefaults()

	var cfg Config

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		log.Printf("Error unmarshalling configuration: %v", err)
		return nil, err
	}

	log.Printf("Loaded configuration from file: %s", path)
	return &cfg, nil
}

// Defaults mirror the tried production tuning: a 3 hour watch window,
// 15 minute polls, and a 15 minute top-30 leaderboard.
func setDefaults() {
	viper.SetDefault("monitor.duration_hours", 3)
	viper.SetDefault("monitor.poll_interval_min", 900)
	viper.SetDefault("monitor.poll_interval_max", 900)
	viper.SetDefault("monitor.initial_limit", 500)
	viper.SetDefault("monitor.incremental_limit", 50)
	viper.SetDefault("leaderboard.interval_seconds", 900)
	viper.SetDefault("leaderboard.top_n", 30)
	viper.SetDefault("dispatch.default_mode", "leaderboard")
	viper.SetDefault("dispatch.batch_top_n", 5)
	viper.SetDefault("metadata.dexscreener_url", "https://api.dexscreener.com/latest/dex/search")
	viper.SetDefault("metadata.jupiter_url", "https://tokens.jup.ag/token")
	viper.SetDefault("metadata.timeout_seconds", 10)
	viper.SetDefault("sink.directory", ".")
	viper.SetDefault("logging.level", "info")
}

// SetGlobalConfig sets the loaded configuration globally.
func SetGlobalConfig(cfg *Config) {
	configLock.Lock()
	defer configLock.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig retrieves the globally set configuration.
func GetGlobalConfig() *Config {
	configLock.RLock()
	defer configLock.RUnlock()
	if globalConfig == nil {
		log.Println("GetGlobalConfig: Global configuration is nil.")
	}
	return globalConfig
}
