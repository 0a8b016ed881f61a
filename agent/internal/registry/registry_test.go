package registry

import (
	"testing"
	"time"

	"ca-monitor/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	appLogger, err := logger.NewLogger(logger.Config{Level: "error", Environment: "test"})
	require.NoError(t, err)
	return New(appLogger)
}

func TestTimeFactor(t *testing.T) {
	start := time.Now()
	st := Stats{StartTime: start}

	assert.InDelta(t, 1.0, st.TimeFactor(start), 0.001)
	assert.InDelta(t, 1.25, st.TimeFactor(start.Add(15*time.Minute)), 0.001)
	assert.InDelta(t, 2.0, st.TimeFactor(start.Add(time.Hour)), 0.001)
	assert.InDelta(t, 4.0, st.TimeFactor(start.Add(3*time.Hour)), 0.001)
}

func TestAverageMentionRate(t *testing.T) {
	start := time.Now()
	st := Stats{StartTime: start, RunningTotal: 110}

	// 110 mentions over one hour: divisor is 2.0, so 55 per hour.
	assert.InDelta(t, 55.0, st.AverageMentionRate(start.Add(time.Hour)), 0.001)
	// At session start the divisor is 1.0.
	assert.InDelta(t, 110.0, st.AverageMentionRate(start), 0.001)
}

func TestMonitoringTimeString(t *testing.T) {
	start := time.Now()
	st := Stats{StartTime: start}

	assert.Equal(t, "0m", st.MonitoringTimeString(start))
	assert.Equal(t, "42m", st.MonitoringTimeString(start.Add(42*time.Minute)))
	assert.Equal(t, "1h 5m", st.MonitoringTimeString(start.Add(65*time.Minute)))
	assert.Equal(t, "3h 0m", st.MonitoringTimeString(start.Add(3*time.Hour)))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "$WIF", Stats{Name: "dogwifhat", Ticker: "$WIF"}.DisplayName())
	assert.Equal(t, "dogwifhat", Stats{Name: "dogwifhat"}.DisplayName())
	assert.Equal(t, "Unknown", Stats{}.DisplayName())
}

func TestRegisterOrAttach(t *testing.T) {
	r := newTestRegistry(t)

	st, created := r.RegisterOrAttach("addr1", "Token One", "$ONE", 100)
	require.True(t, created)
	assert.True(t, st.Active)
	assert.Equal(t, "Token One", st.Name)

	// Second chat attaches to the same entry instead of creating a new one.
	st2, created2 := r.RegisterOrAttach("addr1", "", "", 200)
	assert.False(t, created2)
	assert.Equal(t, "Token One", st2.Name)

	assert.Equal(t, []int64{100, 200}, r.Subscribers("addr1"))
	assert.Equal(t, 1, r.ActiveCount(0))
}

func TestRecordInitialSeedsRunningCounts(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrAttach("addr1", "", "", 100)

	r.RecordInitial("addr1", 100, 60, 40)

	st, ok := r.Get("addr1")
	require.True(t, ok)
	assert.Equal(t, 100, st.InitialTotal)
	assert.Equal(t, 100, st.RunningTotal)
	assert.Equal(t, 60, st.RunningVerified)
	assert.Equal(t, 40, st.RunningNonVerified)
	assert.Equal(t, 0, st.NewMentions())
}

func TestRecordCycleAccumulates(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrAttach("addr1", "", "", 100)
	r.RecordInitial("addr1", 100, 60, 40)

	r.RecordCycle("addr1", 10, 4, 6)

	st, _ := r.Get("addr1")
	assert.Equal(t, 110, st.RunningTotal)
	assert.Equal(t, 64, st.RunningVerified)
	assert.Equal(t, 46, st.RunningNonVerified)
	assert.Equal(t, 10, st.LastCycleTotal)
	assert.Equal(t, 10, st.NewMentions())

	// A zero batch still overwrites the last-cycle counters.
	r.RecordCycle("addr1", 0, 0, 0)
	st, _ = r.Get("addr1")
	assert.Equal(t, 110, st.RunningTotal)
	assert.Equal(t, 0, st.LastCycleTotal)
}

func TestMarkCompleteIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrAttach("addr1", "", "", 100)

	r.MarkComplete("addr1")
	r.MarkComplete("addr1")

	st, ok := r.Get("addr1")
	require.True(t, ok)
	assert.False(t, st.Active)
	assert.Equal(t, 0, r.ActiveCount(0))

	// Completing an unknown address is a no-op.
	r.MarkComplete("missing")
}

func TestRankedActiveOrdering(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrAttach("low", "", "", 100)
	r.RegisterOrAttach("high", "", "", 100)
	r.RegisterOrAttach("mid", "", "", 100)
	r.RecordInitial("low", 10, 0, 10)
	r.RecordInitial("high", 300, 0, 300)
	r.RecordInitial("mid", 50, 0, 50)

	ranked := r.RankedActive(100)
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].Address)
	assert.Equal(t, "mid", ranked[1].Address)
	assert.Equal(t, "low", ranked[2].Address)
}

func TestRankedActiveTieBreaksOnStartTime(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrAttach("younger", "", "", 100)
	r.RegisterOrAttach("older", "", "", 100)

	// Zero mentions on both gives identical rates regardless of elapsed
	// time, so only the start-time tie break decides the order.
	now := time.Now()
	r.tokens["older"].stats.StartTime = now.Add(-30 * time.Minute)
	r.tokens["younger"].stats.StartTime = now.Add(-5 * time.Minute)

	ranked := r.RankedActive(100)
	require.Len(t, ranked, 2)
	assert.Equal(t, "older", ranked[0].Address)
	assert.Equal(t, "younger", ranked[1].Address)
}

func TestRankedActiveFiltersByChatAndActivity(t *testing.T) {
	r := newTestRegistry(t)
	r.RegisterOrAttach("shared", "", "", 100)
	r.RegisterOrAttach("shared", "", "", 200)
	r.RegisterOrAttach("only200", "", "", 200)
	r.RegisterOrAttach("done", "", "", 100)
	r.MarkComplete("done")

	for _, addr := range []string{"shared", "only200"} {
		r.RecordInitial(addr, 10, 5, 5)
	}

	ranked100 := r.RankedActive(100)
	require.Len(t, ranked100, 1)
	assert.Equal(t, "shared", ranked100[0].Address)

	assert.Len(t, r.RankedActive(200), 2)
	assert.Len(t, r.RankedActive(0), 2)
	assert.Equal(t, 1, r.ActiveCount(100))
	assert.Equal(t, 2, r.ActiveCount(0))
}
