package channel

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// Envelope frames every wire event.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEnvelope frames an event with its payload for the wire.
func EncodeEnvelope(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return sonic.Marshal(Envelope{Event: event, Payload: raw})
}

// DecodeEnvelope parses a framed wire event.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
