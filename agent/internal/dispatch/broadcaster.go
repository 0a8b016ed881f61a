package dispatch

import (
	"context"
	"time"

	"ca-monitor/agent/internal/registry"
	"ca-monitor/shared/logger"

	"go.uber.org/zap"
)

// Pauser reports whether the operator has paused the system. The
// broadcaster checks it before every firing; in-flight monitor sessions are
// never affected.
type Pauser interface {
	Sleeping() bool
}

// Broadcaster periodically sends each subscribed channel its own ranked
// leaderboard view. It runs independently of any session's cycle timing.
type Broadcaster struct {
	disp     *Dispatcher
	reg      *registry.Registry
	channels []int64
	interval time.Duration
	pause    Pauser
	log      *logger.Logger
}

func NewBroadcaster(disp *Dispatcher, reg *registry.Registry, channels []int64, interval time.Duration, pause Pauser, appLogger *logger.Logger) *Broadcaster {
	return &Broadcaster{
		disp:     disp,
		reg:      reg,
		channels: channels,
		interval: interval,
		pause:    pause,
		log:      appLogger,
	}
}

// Run fires on a fixed interval until ctx is cancelled. Each firing is
// skipped entirely while the mode is legacy, while paused, or while no
// token is active anywhere.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("Leaderboard broadcaster started", zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("Leaderboard broadcaster stopped")
			return
		case <-ticker.C:
			b.fire()
		}
	}
}

func (b *Broadcaster) fire() {
	if b.disp.Mode() != ModeLeaderboard {
		b.log.Debug("Leaderboard skipped (legacy mode)")
		return
	}
	if b.pause != nil && b.pause.Sleeping() {
		b.log.Debug("Leaderboard paused")
		return
	}
	if b.reg.ActiveCount(0) == 0 {
		b.log.Debug("Leaderboard skipped (no active tokens)")
		return
	}

	for _, chatID := range b.channels {
		// Channels with zero active tokens are skipped inside SendLeaderboard.
		b.disp.SendLeaderboard(chatID)
	}
}
