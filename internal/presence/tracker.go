// Package presence turns local UI activity into outbound presence signals
// and expires inbound ones. Signals are soft: there is no "stopped typing"
// event on the wire, receivers clear indicators purely on silence.
package presence

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/model/chat"
)

const defaultIdleAfter = 1500 * time.Millisecond

// Emitter is the outbound half of an event channel.
type Emitter interface {
	Emit(event string, payload any) error
}

// Tracker emits typing/away/returned signals for the local user. Timer
// handles are owned by the tracker and cancelled deterministically on Stop.
type Tracker struct {
	emit      Emitter
	roomID    string
	name      string
	idleAfter time.Duration
	logger    zerolog.Logger

	mu          sync.Mutex
	typingTimer *time.Timer
	typing      bool
	stopped     bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithIdleAfter overrides how long after the last keystroke the local
// typing state lapses.
func WithIdleAfter(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.idleAfter = d }
}

// WithTrackerLogger attaches a logger.
func WithTrackerLogger(logger zerolog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger }
}

// NewTracker builds a tracker for one local room membership.
func NewTracker(emit Emitter, roomID, name string, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		emit:      emit,
		roomID:    roomID,
		name:      name,
		idleAfter: defaultIdleAfter,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Keystroke emits a typing signal and restarts the idle timer. Every
// keystroke emits; receivers debounce on their side.
func (t *Tracker) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if err := t.emit.Emit(chat.EventUserTyping, chat.PresencePayload{RoomID: t.roomID, Name: t.name}); err != nil {
		t.logger.Debug().Err(err).Str("module", "presence").Msg("typing emit failed")
	}
	t.typing = true
	if t.typingTimer != nil {
		t.typingTimer.Reset(t.idleAfter)
		return
	}
	t.typingTimer = time.AfterFunc(t.idleAfter, func() {
		t.mu.Lock()
		t.typing = false
		t.mu.Unlock()
	})
}

// Typing reports whether the local user is within the idle window.
func (t *Tracker) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// SetVisible mirrors document-visibility transitions onto the wire. The
// signals are level-triggered state broadcasts; redundant calls produce
// redundant (idempotent) emits.
func (t *Tracker) SetVisible(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	event := chat.EventUserAway
	if visible {
		event = chat.EventUserReturned
	}
	if err := t.emit.Emit(event, chat.PresencePayload{RoomID: t.roomID, Name: t.name}); err != nil {
		t.logger.Debug().Err(err).Str("module", "presence").Msg("visibility emit failed")
	}
}

// Stop cancels the idle timer. The tracker emits nothing afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.typingTimer != nil {
		t.typingTimer.Stop()
		t.typingTimer = nil
	}
	t.typing = false
}
