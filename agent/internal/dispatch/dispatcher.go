package dispatch

import (
	"sort"
	"sync"
	"time"

	"ca-monitor/agent/internal/mentions"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/shared/logger"

	"go.uber.org/zap"
)

// Mode selects between per-event and periodic leaderboard notifications.
type Mode string

const (
	ModeLegacy      Mode = "legacy"
	ModeLeaderboard Mode = "leaderboard"
)

// SendFunc delivers a rendered message to a destination chat. Fire and
// forget; the transport logs its own failures.
type SendFunc func(chatID int64, message string)

// Dispatcher renders and delivers engine notifications, gated by the active
// mode. The mode is re-read at every decision point; a switch mid-cycle is
// observed by whichever caller checks next.
type Dispatcher struct {
	reg  *registry.Registry
	send SendFunc
	log  *logger.Logger

	batchTopN    int
	topN         int
	durationHrs  int
	pollInterval time.Duration

	mu   sync.RWMutex
	mode Mode
}

func New(reg *registry.Registry, send SendFunc, appLogger *logger.Logger, defaultMode string, topN, batchTopN, durationHours int, pollInterval time.Duration) *Dispatcher {
	d := &Dispatcher{
		reg:          reg,
		send:         send,
		log:          appLogger,
		batchTopN:    batchTopN,
		topN:         topN,
		durationHrs:  durationHours,
		pollInterval: pollInterval,
		mode:         ModeLeaderboard,
	}
	if !d.SetMode(defaultMode) {
		appLogger.Warn("Invalid default notification mode, using leaderboard", zap.String("mode", defaultMode))
	}
	return d
}

// Mode returns the currently active notification mode.
func (d *Dispatcher) Mode() Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mode
}

// SetMode switches the notification mode at runtime. "leaderboards" is
// accepted as an alias. Returns false for anything else unrecognized.
func (d *Dispatcher) SetMode(mode string) bool {
	if mode == "leaderboards" {
		mode = string(ModeLeaderboard)
	}
	switch Mode(mode) {
	case ModeLegacy, ModeLeaderboard:
		d.mu.Lock()
		d.mode = Mode(mode)
		d.mu.Unlock()
		d.log.Info("Notification mode set", zap.String("mode", mode))
		return true
	default:
		return false
	}
}

// NotifyNewToken sends the initial detection message to a single channel.
// Sent in both modes; the engine guarantees at most once per (token, chat).
func (d *Dispatcher) NotifyNewToken(chatID int64, st registry.Stats) {
	d.send(chatID, renderNewToken(st, d.durationHrs, d.pollInterval))
}

// NotifyCycle delivers a per-poll batch update to every subscriber of the
// token. Legacy mode only; a no-op otherwise.
func (d *Dispatcher) NotifyCycle(addr string, batch []mentions.Mention) {
	if d.Mode() != ModeLegacy {
		return
	}
	st, ok := d.reg.Get(addr)
	if !ok || len(batch) == 0 {
		return
	}

	sorted := make([]mentions.Mention, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EngagementScore() > sorted[j].EngagementScore()
	})

	msg := renderCycle(st, sorted, d.batchTopN, time.Now())
	for _, chatID := range d.reg.Subscribers(addr) {
		d.send(chatID, msg)
	}
}

// NotifyCompletion delivers the closing summary for a finished session.
// Legacy mode only.
func (d *Dispatcher) NotifyCompletion(addr string) {
	if d.Mode() != ModeLegacy {
		return
	}
	st, ok := d.reg.Get(addr)
	if !ok {
		return
	}
	msg := renderCompletion(st, d.durationHrs)
	for _, chatID := range d.reg.Subscribers(addr) {
		d.send(chatID, msg)
	}
}

// SendLeaderboard renders and delivers the channel's ranked top-N view.
// Returns the number of tokens shown; zero means nothing was sent.
func (d *Dispatcher) SendLeaderboard(chatID int64) int {
	ranked := d.reg.RankedActive(chatID)
	if len(ranked) == 0 {
		d.log.Debug("No active tokens for leaderboard", zap.Int64("chatID", chatID))
		return 0
	}
	if len(ranked) > d.topN {
		ranked = ranked[:d.topN]
	}

	d.send(chatID, renderLeaderboard(ranked, time.Now(), d.pollInterval))
	d.log.Info("Leaderboard sent", zap.Int64("chatID", chatID), zap.Int("tokens", len(ranked)))
	return len(ranked)
}
