package chat

// Wire event names. Direction is relative to the client.
const (
	// EventConnected is synthesized locally by the channel each time the
	// transport (re)establishes; it never crosses the wire.
	EventConnected = "connected"

	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventSendMessage       = "sendMessage"
	EventSendSystemMessage = "sendSystemMessage"
	EventUserTyping        = "userTyping"
	EventUserAway          = "userAway"
	EventUserReturned      = "userReturned"
	EventLanguageChange    = "languageChange"
	EventLanguageChangeAck = "languageChangeAcknowledged"
	EventMessageHistory    = "messageHistory"
	EventRequestHistory    = "requestHistory"
)

// JoinPayload enters a room.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// LeavePayload exits a room.
type LeavePayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// PresencePayload carries typing/away/returned signals.
type PresencePayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// PresenceKind classifies a presence signal.
type PresenceKind string

const (
	PresenceTyping   PresenceKind = "typing"
	PresenceAway     PresenceKind = "away"
	PresenceReturned PresenceKind = "returned"
)

// PresenceEvent is transient; it never enters the message log except as a
// synthesized system message.
type PresenceEvent struct {
	RoomID string       `json:"roomId"`
	Who    string       `json:"who"`
	Kind   PresenceKind `json:"kind"`
}

// LanguageChangePayload notifies the server of a language switch.
type LanguageChangePayload struct {
	RoomID            string `json:"roomId"`
	PreferredLanguage string `json:"preferredLanguage"`
}

// HistoryRequestPayload asks the server to replay recent room messages.
type HistoryRequestPayload struct {
	RoomID string `json:"roomId"`
}
