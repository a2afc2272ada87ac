// Package channel abstracts the persistent bidirectional event stream
// between the client and the room server.
package channel

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("channel closed")

// Handler receives the raw payload of one inbound event.
type Handler func(payload []byte)

// Channel is a persistent, server-pushed event stream. Events delivered to a
// single subscriber over one live connection arrive in send order; no
// ordering holds across reconnects or across distinct event names.
type Channel interface {
	// Connect starts the transport. It does not block on the dial; the
	// "connected" event fires each time a connection (or reconnection)
	// completes, and never fires if the transport cannot connect.
	Connect(ctx context.Context) error
	// Emit is best-effort; no delivery acknowledgement is modeled.
	Emit(event string, payload any) error
	// Subscribe registers the handler for an event name, replacing any
	// previous handler for that name (last wins).
	Subscribe(event string, h Handler) *Subscription
	Close() error
}

// Subscription unregisters its handler exactly once when cancelled. A
// subscription displaced by a later Subscribe for the same event name
// becomes a no-op.
type Subscription struct {
	event   string
	handler Handler
	once    sync.Once
	remove  func(event string, s *Subscription)
}

// Cancel unregisters the handler. Safe to call multiple times.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.remove(s.event, s)
	})
}

// registry holds per-event handlers with last-wins replacement. It is
// embedded by channel implementations.
type registry struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]*Subscription)}
}

func (r *registry) subscribe(event string, h Handler) *Subscription {
	s := &Subscription{event: event, handler: h, remove: r.removeSub}
	r.mu.Lock()
	r.subs[event] = s
	r.mu.Unlock()
	return s
}

func (r *registry) removeSub(event string, s *Subscription) {
	r.mu.Lock()
	if cur, ok := r.subs[event]; ok && cur == s {
		delete(r.subs, event)
	}
	r.mu.Unlock()
}

func (r *registry) lookup(event string) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subs[event]; ok {
		return s.handler
	}
	return nil
}
