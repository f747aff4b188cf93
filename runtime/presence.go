// Package runtime coordinates live connections: presence counting and the
// broadcast hub. It contains no HTTP or storage schema knowledge.
package runtime

import (
	"log/slog"
	"sync"

	apperrors "trenchsocial/errors"
)

// PresenceTracker counts currently open connections for this process. The
// count is ephemeral: it starts at zero on boot and is not shared across
// processes, so running more than one instance requires moving this to an
// external counter.
type PresenceTracker struct {
	mu    sync.Mutex
	count int
	log   *slog.Logger
}

func NewPresenceTracker(log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{log: log}
}

// Increment records one new connection and returns the new count.
func (p *PresenceTracker) Increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return p.count
}

// Decrement records one closed connection and returns the new count. Every
// decrement must pair with a prior increment; an underflow means a caller
// bug, so it is clamped at zero and logged rather than propagated.
func (p *PresenceTracker) Decrement() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.count == 0 {
		p.log.Error("Presence invariant violated", "error", apperrors.ErrPresenceUnderflow)
		return 0
	}
	p.count--
	return p.count
}

// Count returns the current number of open connections.
func (p *PresenceTracker) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
