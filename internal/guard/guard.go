// Package guard gates one-shot system events so they fire at most once per
// guard lifetime, surviving process restarts via a persisted flag.
package guard

import (
	"github.com/rs/zerolog"
)

// inviteKey is deliberately a single fixed key rather than a per-room one:
// the invite gate is scoped to the whole profile, so joining a second room
// before the flag is cleared suppresses that room's invite message.
const inviteKey = "room_invite"

// Store persists named boolean flags.
type Store interface {
	Get(key string) (bool, error)
	Set(key string, value bool) error
}

// Guard decides whether the room-invite message may be sent.
type Guard struct {
	store  Store
	logger zerolog.Logger
}

// New builds a guard over the given store.
func New(store Store, logger zerolog.Logger) *Guard {
	return &Guard{store: store, logger: logger}
}

// ShouldSend reports whether the invite message may be sent. Storage errors
// suppress the send: at-most-once beats twice.
func (g *Guard) ShouldSend() bool {
	sent, err := g.store.Get(inviteKey)
	if err != nil {
		g.logger.Warn().Err(err).Str("module", "guard").Msg("flag read failed, suppressing send")
		return false
	}
	return !sent
}

// MarkSent persists that the invite message went out.
func (g *Guard) MarkSent() {
	if err := g.store.Set(inviteKey, true); err != nil {
		g.logger.Warn().Err(err).Str("module", "guard").Msg("flag write failed")
	}
}

// Reset clears the flag; called on session teardown.
func (g *Guard) Reset() {
	if err := g.store.Set(inviteKey, false); err != nil {
		g.logger.Warn().Err(err).Str("module", "guard").Msg("flag clear failed")
	}
}
