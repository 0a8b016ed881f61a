package mentions

import (
	"context"
	"time"
)

// Mention is one post referencing a monitored token.
type Mention struct {
	ID        string
	Author    string
	Text      string
	Permalink string
	Verified  bool
	PostedAt  time.Time
	Likes     int
	Reposts   int
	Replies   int
}

// EngagementScore orders batch notifications: likes plus reposts.
func (m Mention) EngagementScore() int {
	return m.Likes + m.Reposts
}

// Searcher is the mention-source boundary. Implementations may return the
// partial results gathered so far together with a non-nil error; callers
// decide whether the partial batch is usable.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Mention, error)
}
