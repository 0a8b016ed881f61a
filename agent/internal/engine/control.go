package engine

import (
	"sync"
	"time"
)

// Control is the operator pause switch. Written only by the command layer;
// everything else reads it. While sleeping, new-token detection and the
// periodic broadcast are suppressed, but in-flight sessions keep running.
type Control struct {
	mu         sync.Mutex
	sleepUntil time.Time
}

func NewControl() *Control {
	return &Control{}
}

// SleepFor pauses the system for d and returns the wake time.
func (c *Control) SleepFor(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleepUntil = time.Now().Add(d)
	return c.sleepUntil
}

// Resume clears the pause immediately.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleepUntil = time.Time{}
}

// Sleeping reports whether the pause window is still open.
func (c *Control) Sleeping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.sleepUntil.IsZero() && time.Now().Before(c.sleepUntil)
}

// SleepUntilString renders the wake time for status messages.
func (c *Control) SleepUntilString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sleepUntil.IsZero() || !time.Now().Before(c.sleepUntil) {
		return "not sleeping"
	}
	return c.sleepUntil.UTC().Format("15:04 UTC")
}
