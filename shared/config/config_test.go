package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("does-not-exist.yaml")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Monitor.DurationHours)
	assert.Equal(t, 3*time.Hour, cfg.Monitor.Duration())
	assert.Equal(t, 900, cfg.Monitor.PollIntervalMin)
	assert.Equal(t, 500, cfg.Monitor.InitialLimit)
	assert.Equal(t, 50, cfg.Monitor.IncrementalLimit)
	assert.Equal(t, 15*time.Minute, cfg.Leaderboard.Interval())
	assert.Equal(t, 30, cfg.Leaderboard.TopN)
	assert.Equal(t, "leaderboard", cfg.Dispatch.DefaultMode)
	assert.Equal(t, 5, cfg.Dispatch.BatchTopN)
	assert.NotEmpty(t, cfg.Metadata.DexScreenerURL)
}

func TestGlobalConfig(t *testing.T) {
	cfg := &Config{}
	SetGlobalConfig(cfg)
	assert.Same(t, cfg, GetGlobalConfig())
}
