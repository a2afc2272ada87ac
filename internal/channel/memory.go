package channel

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
)

// Memory is an in-process Channel used by tests and by embedded setups. The
// transport is driven by hand: Deliver injects inbound events and
// FireConnected simulates a (re)connection. Emitted events are recorded.
type Memory struct {
	*registry

	mu      sync.Mutex
	closed  bool
	emitted []EmittedEvent
}

// EmittedEvent records one outbound Emit call.
type EmittedEvent struct {
	Event   string
	Payload []byte
}

// NewMemory builds an idle in-memory channel.
func NewMemory() *Memory {
	return &Memory{registry: newRegistry()}
}

func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Emit(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	var data []byte
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return err
		}
		data = b
	}
	m.emitted = append(m.emitted, EmittedEvent{Event: event, Payload: data})
	return nil
}

func (m *Memory) Subscribe(event string, h Handler) *Subscription {
	return m.subscribe(event, h)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// FireConnected dispatches the synthetic connected signal, as the websocket
// channel does after every successful dial.
func (m *Memory) FireConnected() {
	if h := m.lookup("connected"); h != nil {
		h(nil)
	}
}

// Deliver injects an inbound event, marshalling payload to its wire form.
func (m *Memory) Deliver(event string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}
	m.DeliverRaw(event, data)
	return nil
}

// DeliverRaw injects an inbound event with a pre-encoded payload.
func (m *Memory) DeliverRaw(event string, payload []byte) {
	if h := m.lookup(event); h != nil {
		h(payload)
	}
}

// Emitted returns the recorded outbound events for an event name; all of
// them when event is empty.
func (m *Memory) Emitted(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmittedEvent, 0, len(m.emitted))
	for _, e := range m.emitted {
		if event == "" || e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
