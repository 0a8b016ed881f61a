package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"ca-monitor/shared/logger"

	"go.uber.org/zap"
)

// Stats is a point-in-time copy of one monitored token's counters. The
// registry hands out copies only, so readers never observe a half-updated
// record.
type Stats struct {
	Address string
	Name    string
	Ticker  string

	StartTime time.Time

	InitialTotal       int
	InitialVerified    int
	InitialNonVerified int

	RunningTotal       int
	RunningVerified    int
	RunningNonVerified int

	LastCycleTotal       int
	LastCycleVerified    int
	LastCycleNonVerified int

	Active bool
}

// MonitoringMinutes reports whole minutes elapsed since monitoring began.
func (s Stats) MonitoringMinutes(now time.Time) int {
	return int(now.Sub(s.StartTime).Minutes())
}

// MonitoringTimeString renders the elapsed monitoring time as "1h 5m" / "42m".
func (s Stats) MonitoringTimeString(now time.Time) string {
	minutes := s.MonitoringMinutes(now)
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// TimeFactor is the ranking decay divisor: the first hour counts as 1, then
// elapsed hours accrue on top. 0m: 1.0, 15m: 1.25, 1h: 2.0, 3h: 4.0.
func (s Stats) TimeFactor(now time.Time) float64 {
	return 1.0 + now.Sub(s.StartTime).Hours()
}

// AverageMentionRate is RunningTotal divided by the time factor. This rewards
// sustained mention velocity over raw volume so a bursty new token cannot
// permanently top the board.
func (s Stats) AverageMentionRate(now time.Time) float64 {
	return float64(s.RunningTotal) / s.TimeFactor(now)
}

// NewMentions is the count gathered after the initial snapshot.
func (s Stats) NewMentions() int {
	return s.RunningTotal - s.InitialTotal
}

// DisplayName prefers the ticker, then the resolved name.
func (s Stats) DisplayName() string {
	if s.Ticker != "" {
		return s.Ticker
	}
	if s.Name != "" {
		return s.Name
	}
	return "Unknown"
}

// ShortAddress abbreviates long contract addresses for message rendering.
func (s Stats) ShortAddress() string {
	if len(s.Address) > 20 {
		return s.Address[:8] + "..." + s.Address[len(s.Address)-4:]
	}
	return s.Address
}

type record struct {
	stats   Stats
	chatIDs map[int64]struct{}
}

// Registry is the authoritative in-memory state of every token the process
// has ever seen. Entries are created at most once per address and never
// deleted; a single mutex serializes all writers (ingestion, sessions, the
// broadcaster's reads).
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]*record
	log    *logger.Logger
}

func New(appLogger *logger.Logger) *Registry {
	return &Registry{
		tokens: make(map[string]*record),
		log:    appLogger,
	}
}

// RegisterOrAttach creates a new active entry with chatID as sole subscriber,
// or appends chatID to an existing entry. The returned bool reports whether
// the entry was created by this call, so racing callers can agree on a
// single session owner.
func (r *Registry) RegisterOrAttach(addr, name, ticker string, chatID int64) (Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.tokens[addr]; ok {
		rec.chatIDs[chatID] = struct{}{}
		return rec.stats, false
	}

	rec := &record{
		stats: Stats{
			Address:   addr,
			Name:      name,
			Ticker:    ticker,
			StartTime: time.Now(),
			Active:    true,
		},
		chatIDs: map[int64]struct{}{chatID: {}},
	}
	r.tokens[addr] = rec
	r.log.Info("Tracking token", zap.String("display", rec.stats.DisplayName()), zap.String("address", rec.stats.ShortAddress()))
	return rec.stats, true
}

// RecordInitial stores the one-time snapshot and seeds the running counts.
// The engine guarantees exactly one call per token, before the first cycle.
func (r *Registry) RecordInitial(addr string, total, verified, nonVerified int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[addr]
	if !ok {
		return
	}
	rec.stats.InitialTotal = total
	rec.stats.InitialVerified = verified
	rec.stats.InitialNonVerified = nonVerified
	rec.stats.RunningTotal = total
	rec.stats.RunningVerified = verified
	rec.stats.RunningNonVerified = nonVerified
}

// RecordCycle adds one poll batch to the running counts and overwrites the
// last-cycle counts. A zero batch is valid and still resets the last-cycle
// fields.
func (r *Registry) RecordCycle(addr string, newTotal, newVerified, newNonVerified int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.tokens[addr]
	if !ok {
		return
	}
	rec.stats.LastCycleTotal = newTotal
	rec.stats.LastCycleVerified = newVerified
	rec.stats.LastCycleNonVerified = newNonVerified
	rec.stats.RunningTotal += newTotal
	rec.stats.RunningVerified += newVerified
	rec.stats.RunningNonVerified += newNonVerified
}

// MarkComplete flips the entry inactive. Idempotent.
func (r *Registry) MarkComplete(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.tokens[addr]; ok {
		rec.stats.Active = false
	}
}

// Get returns a copy of the stats for addr, if tracked.
func (r *Registry) Get(addr string) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tokens[addr]
	if !ok {
		return Stats{}, false
	}
	return rec.stats, true
}

// Subscribers returns the sorted chat IDs attached to addr.
func (r *Registry) Subscribers(addr string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.tokens[addr]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(rec.chatIDs))
	for id := range rec.chatIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RankedActive returns all active tokens visible to chatID (all active
// tokens when chatID is 0), ordered descending by average mention rate.
// Ties rank the earlier StartTime first.
func (r *Registry) RankedActive(chatID int64) []Stats {
	now := time.Now()

	r.mu.RLock()
	out := make([]Stats, 0, len(r.tokens))
	for _, rec := range r.tokens {
		if !rec.stats.Active {
			continue
		}
		if chatID != 0 {
			if _, ok := rec.chatIDs[chatID]; !ok {
				continue
			}
		}
		out = append(out, rec.stats)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].AverageMentionRate(now), out[j].AverageMentionRate(now)
		if ri != rj {
			return ri > rj
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// ActiveCount reports how many tokens are active for chatID (global when 0).
func (r *Registry) ActiveCount(chatID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.tokens {
		if !rec.stats.Active {
			continue
		}
		if chatID != 0 {
			if _, ok := rec.chatIDs[chatID]; !ok {
				continue
			}
		}
		count++
	}
	return count
}
