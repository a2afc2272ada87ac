package hub

import (
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/babelchat/babelchat/internal/channel"
	"github.com/babelchat/babelchat/internal/model/chat"
)

const (
	clientSendBuffer = 64
	clientWriteWait  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	// Guarded by hub.mu.
	roomID   string
	name     string
	language string
}

// ServeWS upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("module", "hub").Msg("upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		done: make(chan struct{}),
	}
	go c.writePump()
	c.readPump()
}

func (c *client) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		// Slow consumer; drop rather than stall the room.
		c.hub.logger.Warn().Str("module", "hub").Str("name", c.name).Msg("send buffer full, dropping event")
	}
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		close(c.done)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := channel.DecodeEnvelope(data)
		if err != nil {
			c.hub.logger.Warn().Err(err).Str("module", "hub").Msg("dropping malformed frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *client) dispatch(env channel.Envelope) {
	switch env.Event {
	case chat.EventJoinRoom:
		var p chat.JoinPayload
		if err := sonic.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
			return
		}
		c.hub.join(c, p.RoomID, p.Name, p.Language)
		c.replayHistory(p.RoomID)

	case chat.EventLeaveRoom:
		c.hub.leave(c)

	case chat.EventSendMessage, chat.EventSendSystemMessage:
		var msg chat.Message
		if err := sonic.Unmarshal(env.Payload, &msg); err != nil || strings.TrimSpace(msg.Text) == "" {
			return
		}
		roomID := c.currentRoom()
		if roomID == "" {
			return
		}
		stored := c.hub.record(roomID, msg)
		c.hub.broadcast(roomID, c, env.Event, stored, true)

	case chat.EventUserTyping, chat.EventUserAway, chat.EventUserReturned:
		var p chat.PresencePayload
		if err := sonic.Unmarshal(env.Payload, &p); err != nil || p.Name == "" {
			return
		}
		roomID := c.currentRoom()
		if roomID == "" {
			return
		}
		p.RoomID = roomID
		// Presence is transient: relayed to the others, never recorded.
		c.hub.broadcast(roomID, c, env.Event, p, false)

	case chat.EventLanguageChange:
		var p chat.LanguageChangePayload
		if err := sonic.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		c.hub.mu.Lock()
		c.language = p.PreferredLanguage
		c.hub.mu.Unlock()
		c.reply(chat.EventLanguageChangeAck, nil)

	case chat.EventRequestHistory:
		var p chat.HistoryRequestPayload
		if err := sonic.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
			return
		}
		c.replayHistory(p.RoomID)

	default:
		c.hub.logger.Warn().Str("module", "hub").Str("event", env.Event).Msg("unknown event")
	}
}

func (c *client) currentRoom() string {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	return c.roomID
}

func (c *client) replayHistory(roomID string) {
	history := c.hub.history(roomID)
	if history == nil {
		history = []chat.Message{}
	}
	c.reply(chat.EventMessageHistory, history)
}

func (c *client) reply(event string, payload any) {
	data, err := channel.EncodeEnvelope(event, payload)
	if err != nil {
		c.hub.logger.Error().Err(err).Str("module", "hub").Str("event", event).Msg("encode failed")
		return
	}
	c.trySend(data)
}
