package channel

import (
	"testing"
)

func TestSubscribeLastWins(t *testing.T) {
	mem := NewMemory()

	var first, second int
	mem.Subscribe("evt", func([]byte) { first++ })
	mem.Subscribe("evt", func([]byte) { second++ })

	mem.DeliverRaw("evt", nil)

	if first != 0 {
		t.Fatalf("displaced handler was called %d times", first)
	}
	if second != 1 {
		t.Fatalf("expected current handler once, got %d", second)
	}
}

func TestCancelUnregistersExactlyOnce(t *testing.T) {
	mem := NewMemory()

	var calls int
	sub := mem.Subscribe("evt", func([]byte) { calls++ })
	sub.Cancel()
	sub.Cancel() // safe to repeat

	mem.DeliverRaw("evt", nil)
	if calls != 0 {
		t.Fatalf("cancelled handler was called %d times", calls)
	}
}

func TestCancelOfDisplacedSubscriptionIsNoop(t *testing.T) {
	mem := NewMemory()

	var current int
	old := mem.Subscribe("evt", func([]byte) {})
	mem.Subscribe("evt", func([]byte) { current++ })

	// Cancelling the displaced subscription must not unregister the
	// replacement.
	old.Cancel()
	mem.DeliverRaw("evt", nil)

	if current != 1 {
		t.Fatalf("expected current handler once, got %d", current)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := EncodeEnvelope("ping", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != "ping" {
		t.Fatalf("unexpected event: %q", env.Event)
	}
	if string(env.Payload) != `{"k":"v"}` {
		t.Fatalf("unexpected payload: %s", env.Payload)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("{nope")); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}
