package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"ca-monitor/agent/internal/dispatch"
	"ca-monitor/agent/internal/mentions"
	"ca-monitor/agent/internal/metadata"
	"ca-monitor/agent/internal/registry"
	"ca-monitor/shared/config"
	"ca-monitor/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

type stubSearcher struct {
	results []mentions.Mention
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]mentions.Mention, error) {
	return s.results, nil
}

type noopAppender struct{}

func (noopAppender) Append(token string, sessionStart time.Time, batch []mentions.Mention) error {
	return nil
}

type sentCollector struct {
	mu       sync.Mutex
	messages []string
	chats    []int64
}

func (c *sentCollector) send(chatID int64, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	c.chats = append(c.chats, chatID)
}

func (c *sentCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func newTestEngine(t *testing.T, channels []int64, results []mentions.Mention) (*Engine, *registry.Registry, *sentCollector, *Control) {
	t.Helper()

	appLogger, err := logger.NewLogger(logger.Config{Level: "error", Environment: "test"})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pairs":[]}`))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Monitor = config.MonitorConfig{
		DurationHours:    0, // session window closes immediately, Run returns on entry
		PollIntervalMin:  1,
		PollIntervalMax:  1,
		InitialLimit:     500,
		IncrementalLimit: 50,
	}
	cfg.Leaderboard.TopN = 30

	reg := registry.New(appLogger)
	resolver := metadata.NewResolver(srv.URL, srv.URL, time.Second, appLogger)
	collector := &sentCollector{}
	disp := dispatch.New(reg, collector.send, appLogger, "leaderboard", 30, 5, 3, 15*time.Minute)
	control := NewControl()

	eng := New(reg, resolver, disp, &stubSearcher{results: results}, noopAppender{}, control, cfg, channels, appLogger)
	return eng, reg, collector, control
}

func TestHandleMessageLaunchesSessionOnce(t *testing.T) {
	results := []mentions.Mention{
		{ID: "1", Author: "alice", Verified: true},
		{ID: "2", Author: "bob", Verified: true},
		{ID: "3", Author: "carol"},
	}
	eng, reg, collector, _ := newTestEngine(t, nil, results)

	eng.HandleMessage(context.Background(), 100, "check this "+testToken, time.Now())
	eng.HandleMessage(context.Background(), 100, "same token again "+testToken, time.Now())
	eng.Wait()

	st, ok := reg.Get(testToken)
	require.True(t, ok)
	assert.Equal(t, 3, st.InitialTotal)
	assert.Equal(t, 2, st.InitialVerified)
	assert.Equal(t, 1, st.InitialNonVerified)

	// One detection message for the (token, chat) pair, not two.
	assert.Equal(t, 1, collector.count())
	assert.Equal(t, []int64{100}, reg.Subscribers(testToken))
}

func TestHandleMessageSecondChatAttaches(t *testing.T) {
	eng, reg, collector, _ := newTestEngine(t, nil, nil)

	eng.HandleMessage(context.Background(), 100, testToken, time.Now())
	eng.Wait()
	eng.HandleMessage(context.Background(), 200, testToken, time.Now())
	eng.Wait()

	// Both chats are notified but only one tracking entry exists.
	assert.Equal(t, 2, collector.count())
	assert.Equal(t, []int64{100, 200}, reg.Subscribers(testToken))
}

func TestHandleMessageSkipsWhilePaused(t *testing.T) {
	eng, reg, collector, control := newTestEngine(t, nil, nil)

	control.SleepFor(time.Minute)
	eng.HandleMessage(context.Background(), 100, testToken, time.Now())
	eng.Wait()

	_, ok := reg.Get(testToken)
	assert.False(t, ok)
	assert.Equal(t, 0, collector.count())

	control.Resume()
	eng.HandleMessage(context.Background(), 100, testToken, time.Now())
	eng.Wait()

	_, ok = reg.Get(testToken)
	assert.True(t, ok)
}

func TestHandleMessageIgnoresPreStartMessages(t *testing.T) {
	eng, reg, collector, _ := newTestEngine(t, nil, nil)

	eng.HandleMessage(context.Background(), 100, testToken, time.Now().Add(-time.Hour))
	eng.Wait()

	_, ok := reg.Get(testToken)
	assert.False(t, ok)
	assert.Equal(t, 0, collector.count())
}

func TestHandleMessageChannelFilter(t *testing.T) {
	eng, reg, _, _ := newTestEngine(t, []int64{111}, nil)

	eng.HandleMessage(context.Background(), 222, testToken, time.Now())
	eng.Wait()
	_, ok := reg.Get(testToken)
	assert.False(t, ok)

	eng.HandleMessage(context.Background(), 111, testToken, time.Now())
	eng.Wait()
	_, ok = reg.Get(testToken)
	assert.True(t, ok)
}

func TestHandleMessageIgnoresPlainText(t *testing.T) {
	eng, reg, collector, _ := newTestEngine(t, nil, nil)

	eng.HandleMessage(context.Background(), 100, "gm, no address here", time.Now())
	eng.Wait()

	assert.Equal(t, 0, reg.ActiveCount(0))
	assert.Equal(t, 0, collector.count())
}
