package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPauser struct {
	sleeping bool
}

func (p *stubPauser) Sleeping() bool { return p.sleeping }

func TestBroadcasterFire(t *testing.T) {
	d, reg, sent := newTestDispatcher(t, "leaderboard", 30)
	pause := &stubPauser{}
	b := NewBroadcaster(d, reg, []int64{100, 200}, d.pollInterval, pause, d.log)

	// Nothing active anywhere: no sends.
	b.fire()
	assert.Empty(t, *sent)

	reg.RegisterOrAttach("addr1", "Token", "$TOK", 100)
	reg.RecordInitial("addr1", 10, 5, 5)

	// Only chat 100 subscribes, so chat 200's firing is skipped.
	b.fire()
	require.Len(t, *sent, 1)
	assert.Equal(t, int64(100), (*sent)[0].chatID)
	assert.Contains(t, (*sent)[0].text, "TOP 1 TOKENS")
}

func TestBroadcasterRespectsModeAndPause(t *testing.T) {
	d, reg, sent := newTestDispatcher(t, "leaderboard", 30)
	pause := &stubPauser{}
	b := NewBroadcaster(d, reg, []int64{100}, d.pollInterval, pause, d.log)

	reg.RegisterOrAttach("addr1", "Token", "$TOK", 100)
	reg.RecordInitial("addr1", 10, 5, 5)

	pause.sleeping = true
	b.fire()
	assert.Empty(t, *sent)

	pause.sleeping = false
	d.SetMode("legacy")
	b.fire()
	assert.Empty(t, *sent)

	d.SetMode("leaderboard")
	b.fire()
	assert.Len(t, *sent, 1)
}
