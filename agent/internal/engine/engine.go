package engine

import (
	"context"
	"sync"
	"time"

	"ca-monitor/agent/internal/dispatch"
	"ca-monitor/agent/internal/mentions"
	"ca-monitor/agent/internal/metadata"
	"ca-monitor/agent/internal/monitor"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/agent/internal/sink"
	"ca-monitor/shared/config"
	"ca-monitor/shared/logger"

	"go.uber.org/zap"
)

// Engine is the ingestion path: it turns chat messages into monitor
// sessions. One goroutine per session plus the broadcaster; the engine
// retains a handle on everything it launches so shutdown can drain.
type Engine struct {
	reg      *registry.Registry
	resolver *metadata.Resolver
	disp     *dispatch.Dispatcher
	searcher mentions.Searcher
	records  sink.Appender
	control  *Control
	log      *logger.Logger
	cfg      *config.Config

	// Channels the engine listens to; empty means all chats.
	channels map[int64]struct{}

	startTime time.Time

	mu       sync.Mutex
	notified map[string]map[int64]struct{} // token -> chats already given the first notification

	wg sync.WaitGroup
}

func New(reg *registry.Registry, resolver *metadata.Resolver, disp *dispatch.Dispatcher, searcher mentions.Searcher, records sink.Appender, control *Control, cfg *config.Config, channels []int64, appLogger *logger.Logger) *Engine {
	chanSet := make(map[int64]struct{}, len(channels))
	for _, id := range channels {
		chanSet[id] = struct{}{}
	}
	return &Engine{
		reg:       reg,
		resolver:  resolver,
		disp:      disp,
		searcher:  searcher,
		records:   records,
		control:   control,
		log:       appLogger,
		cfg:       cfg,
		channels:  chanSet,
		startTime: time.Now(),
		notified:  make(map[string]map[int64]struct{}),
	}
}

// Control exposes the pause switch for the command layer.
func (e *Engine) Control() *Control {
	return e.control
}

// HandleMessage inspects one chat message for a contract address and, for a
// brand-new token, spins up a monitor session. Re-detections only attach
// the channel and replay the existing stats.
func (e *Engine) HandleMessage(ctx context.Context, chatID int64, text string, sentAt time.Time) {
	// Backlog delivered by the chat platform from before startup is ignored.
	if !sentAt.IsZero() && sentAt.Before(e.startTime) {
		return
	}
	if len(e.channels) > 0 {
		if _, ok := e.channels[chatID]; !ok {
			return
		}
	}
	if text == "" {
		return
	}
	if e.control.Sleeping() {
		e.log.Info("Sleeping, skipping token detection", zap.String("until", e.control.SleepUntilString()))
		return
	}

	token := ExtractToken(text)
	if token == "" {
		return
	}

	if !e.markNotified(token, chatID) {
		e.log.Debug("Duplicate token in same chat ignored", zap.String("token", token), zap.Int64("chatID", chatID))
		return
	}

	if st, ok := e.reg.Get(token); ok {
		// Seen in another channel already: attach and replay current totals.
		e.log.Info("Replaying existing token stats to new chat", zap.String("token", token), zap.Int64("chatID", chatID))
		attached, _ := e.reg.RegisterOrAttach(token, st.Name, st.Ticker, chatID)
		e.disp.NotifyNewToken(chatID, attached)
		return
	}

	e.log.Info("New token detected", zap.String("token", token), zap.Int64("chatID", chatID))

	info := e.resolver.Resolve(ctx, token)
	if info.Chain != "" {
		e.log.Info("Resolved token chain", zap.String("token", token), zap.String("chain", info.Chain))
	}

	st, created := e.reg.RegisterOrAttach(token, info.Name, info.Ticker, chatID)
	if !created {
		// Lost the registration race to another channel's ingestion; the
		// winner owns the session, this chat just gets the notification.
		e.disp.NotifyNewToken(chatID, st)
		return
	}

	session := monitor.NewSession(token, e.searcher, e.reg, e.disp, e.records, e.cfg.Monitor, e.log)
	session.InitialCount(ctx)

	if st, ok := e.reg.Get(token); ok {
		e.disp.NotifyNewToken(chatID, st)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		session.Run(ctx)
	}()
}

// markNotified records the (token, chat) first-notification pair. Returns
// false when the pair was already delivered. Pairs are never evicted.
func (e *Engine) markNotified(token string, chatID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	chats, ok := e.notified[token]
	if !ok {
		chats = make(map[int64]struct{})
		e.notified[token] = chats
	}
	if _, dup := chats[chatID]; dup {
		return false
	}
	chats[chatID] = struct{}{}
	return true
}

// Wait blocks until every launched session goroutine has exited. Used on
// shutdown after the shared context is cancelled.
func (e *Engine) Wait() {
	e.wg.Wait()
}
