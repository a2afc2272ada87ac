// Package hub is the server-side counterpart of the client engine: room
// membership, event fan-out and a bounded in-memory history replayed to
// (re)joining clients. It holds no persistence beyond the replay window.
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/channel"
	"github.com/babelchat/babelchat/internal/model/chat"
)

const defaultHistoryLimit = 50

// Hub tracks rooms and their connected clients.
type Hub struct {
	logger       zerolog.Logger
	historyLimit int

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	clients map[*client]struct{}
	history []chat.Message
}

// New builds an empty hub. historyLimit bounds the per-room replay window;
// zero selects the default.
func New(logger zerolog.Logger, historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Hub{
		logger:       logger,
		historyLimit: historyLimit,
		rooms:        make(map[string]*room),
	}
}

func (h *Hub) join(c *client, roomID, name, language string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A rejoin on the same connection (reconnect replay) must not leave the
	// client registered in a stale room.
	h.removeLocked(c)

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{clients: make(map[*client]struct{})}
		h.rooms[roomID] = r
	}
	r.clients[c] = struct{}{}
	c.roomID = roomID
	c.name = name
	c.language = language
	h.logger.Info().Str("module", "hub").Str("room", roomID).Str("name", name).Int("members", len(r.clients)).Msg("client joined")
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if c.roomID == "" {
		return
	}
	r, ok := h.rooms[c.roomID]
	if !ok {
		return
	}
	delete(r.clients, c)
	if len(r.clients) == 0 {
		// History is dropped with the room; replay is best-effort only.
		delete(h.rooms, c.roomID)
	}
	h.logger.Info().Str("module", "hub").Str("room", c.roomID).Str("name", c.name).Msg("client left")
	c.roomID = ""
}

// record appends a message to the room history, assigning a missing ID and
// timestamp, and returns the stored message.
func (h *Hub) record(roomID string, msg chat.Message) chat.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	msg.RoomID = roomID

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return msg
	}
	r.history = append(r.history, msg)
	if len(r.history) > h.historyLimit {
		r.history = r.history[len(r.history)-h.historyLimit:]
	}
	return msg
}

func (h *Hub) history(roomID string) []chat.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	copied := make([]chat.Message, len(r.history))
	copy(copied, r.history)
	return copied
}

// broadcast fans an event out to every member of the room. includeSender
// controls whether the originating client receives its own echo.
func (h *Hub) broadcast(roomID string, sender *client, event string, payload any, includeSender bool) {
	data, err := channel.EncodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("module", "hub").Str("event", event).Msg("encode failed")
		return
	}

	h.mu.Lock()
	r, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	targets := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		if c == sender && !includeSender {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.trySend(data)
	}
}
