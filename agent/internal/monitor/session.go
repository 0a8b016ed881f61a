package monitor

import (
	"context"
	"math/rand"
	"time"

	"ca-monitor/agent/internal/dispatch"
	"ca-monitor/agent/internal/mentions"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/agent/internal/sink"
	"ca-monitor/shared/config"
	"ca-monitor/shared/logger"

	"go.uber.org/zap"
)

// Session monitors one token for a fixed duration: an initial bulk count,
// then incremental polls on a jittered cadence. The dedup set and cycle
// counters are owned exclusively by the session; shared state lives in the
// registry.
type Session struct {
	token    string
	searcher mentions.Searcher
	reg      *registry.Registry
	disp     *dispatch.Dispatcher
	records  sink.Appender
	log      *logger.Logger
	cfg      config.MonitorConfig

	startTime time.Time
	endTime   time.Time
	seenIDs   map[string]struct{}
}

func NewSession(token string, searcher mentions.Searcher, reg *registry.Registry, disp *dispatch.Dispatcher, records sink.Appender, cfg config.MonitorConfig, appLogger *logger.Logger) *Session {
	start := time.Now()
	return &Session{
		token:     token,
		searcher:  searcher,
		reg:       reg,
		disp:      disp,
		records:   records,
		log:       appLogger,
		cfg:       cfg,
		startTime: start,
		endTime:   start.Add(cfg.Duration()),
		seenIDs:   make(map[string]struct{}),
	}
}

// InitialCount issues one bulk search, classifies every author, seeds the
// dedup set, and writes the snapshot into the registry. A provider failure
// mid-stream keeps the partial counts gathered so far instead of failing
// the whole operation.
func (s *Session) InitialCount(ctx context.Context) (total, verified, nonVerified int) {
	s.log.Info("Checking existing mentions", zap.String("token", s.token))

	results, err := s.searcher.Search(ctx, s.token, s.cfg.InitialLimit)
	if err != nil {
		s.log.Warn("Initial search ended early, keeping partial results",
			zap.String("token", s.token), zap.Int("found", len(results)), zap.Error(err))
	}

	for _, m := range results {
		s.seenIDs[m.ID] = struct{}{}
		total++
		if m.Verified {
			verified++
		} else {
			nonVerified++
		}
	}

	s.log.Info("Initial search complete",
		zap.String("token", s.token), zap.Int("total", total), zap.Int("verified", verified), zap.Int("nonVerified", nonVerified))

	s.reg.RecordInitial(s.token, total, verified, nonVerified)
	return total, verified, nonVerified
}

// Run loops poll cycles until the monitoring window elapses, then marks the
// token complete and (mode permitting) emits the closing summary. A failed
// cycle never aborts the session.
func (s *Session) Run(ctx context.Context) {
	s.log.Info("Starting monitor session",
		zap.String("token", s.token), zap.Duration("duration", s.cfg.Duration()))

	for time.Now().Before(s.endTime) {
		sleep := s.nextInterval()
		s.log.Debug("Sleeping until next poll", zap.String("token", s.token), zap.Duration("sleep", sleep))

		select {
		case <-ctx.Done():
			s.log.Info("Monitor session cancelled by shutdown", zap.String("token", s.token))
			s.reg.MarkComplete(s.token)
			return
		case <-time.After(sleep):
		}

		s.pollCycle(ctx)
	}

	s.reg.MarkComplete(s.token)
	s.disp.NotifyCompletion(s.token)
	s.log.Info("Monitor session finished", zap.String("token", s.token))
}

// nextInterval draws a poll delay uniformly from the configured range. The
// default configuration collapses the range to a fixed interval.
func (s *Session) nextInterval() time.Duration {
	min, max := s.cfg.PollIntervalMin, s.cfg.PollIntervalMax
	if max <= min {
		return time.Duration(min) * time.Second
	}
	return time.Duration(min+rand.Intn(max-min+1)) * time.Second
}

// pollCycle runs one incremental search. Provider-side retweet filtering is
// requested but not trusted; the session's dedup set is authoritative.
func (s *Session) pollCycle(ctx context.Context) {
	s.log.Debug("Polling for new mentions", zap.String("token", s.token))

	query := s.token + " -filter:retweets"
	results, err := s.searcher.Search(ctx, query, s.cfg.IncrementalLimit)
	if err != nil {
		// A failed poll is a zero-result cycle; the session carries on.
		s.log.Warn("Poll failed, treating as empty cycle", zap.String("token", s.token), zap.Error(err))
	}

	var batch []mentions.Mention
	var newVerified, newNonVerified int
	for _, m := range results {
		if _, seen := s.seenIDs[m.ID]; seen {
			continue
		}
		s.seenIDs[m.ID] = struct{}{}
		if m.Verified {
			newVerified++
		} else {
			newNonVerified++
		}
		batch = append(batch, m)
	}

	if len(batch) > 0 {
		s.log.Info("Found new mentions",
			zap.String("token", s.token), zap.Int("count", len(batch)),
			zap.Int("verified", newVerified), zap.Int("nonVerified", newNonVerified))

		if err := s.records.Append(s.token, s.startTime, batch); err != nil {
			s.log.Error("Failed to persist mention batch", zap.String("token", s.token), zap.Error(err))
		}
	} else {
		s.log.Debug("No new mentions", zap.String("token", s.token))
	}

	// A zero batch still overwrites the last-cycle counters.
	s.reg.RecordCycle(s.token, len(batch), newVerified, newNonVerified)

	if len(batch) > 0 {
		s.disp.NotifyCycle(s.token, batch)
	}
}
