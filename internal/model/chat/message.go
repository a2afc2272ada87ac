package chat

import "time"

// MessageKind distinguishes user-typed messages from client-synthesized ones.
type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
	KindQR     MessageKind = "qr"
)

// Message is immutable once appended to a session log. Inbound messages get
// their timestamp backfilled at receipt time; nothing else is mutated.
type Message struct {
	ID        string      `json:"id,omitempty"`
	RoomID    string      `json:"roomId"`
	Sender    string      `json:"sender,omitempty"`
	Text      string      `json:"text"`
	Language  string      `json:"language"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}
