package chat

import "time"

// ConnectionState tracks one room membership attempt.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateAwaitingName
	StateJoined
	StateLeaving
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingName:
		return "awaiting-name"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session captures one local user's membership in one room.
type Session struct {
	RoomID            string          `json:"roomId"`
	LocalDisplayName  string          `json:"localDisplayName"`
	PreferredLanguage string          `json:"preferredLanguage"`
	ConnectionState   ConnectionState `json:"connectionState"`
	JoinedAt          time.Time       `json:"joinedAt"`
}
