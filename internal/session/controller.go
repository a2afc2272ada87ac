// Package session drives the room lifecycle: connecting, naming, joining,
// leaving. The controller owns the canonical message log and wires the
// channel, translation cache, presence tracker and invite guard together.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/channel"
	"github.com/babelchat/babelchat/internal/guard"
	"github.com/babelchat/babelchat/internal/model/chat"
	"github.com/babelchat/babelchat/internal/presence"
	"github.com/babelchat/babelchat/internal/translate"
)

var (
	ErrNotAwaitingName = errors.New("session is not awaiting a display name")
	ErrNotJoined       = errors.New("session is not joined")
)

// wireLanguage is the canonical language messages travel in. Outbound text
// passes through the translation cache targeting it, which keeps English
// input a guaranteed zero-call no-op.
const wireLanguage = "en"

// Controller is the top-level orchestrator for one room membership attempt.
type Controller struct {
	ch          channel.Channel
	cache       *translate.Cache
	invite      *guard.Guard
	transcriber *translate.Transcriber
	logger      zerolog.Logger

	roomID        string
	inviteBaseURL string
	typingTTL     time.Duration

	msgLog    *MessageLog
	indicator *presence.Indicator
	tracker   *presence.Tracker

	onMessage  func(chat.Message)
	onPresence func(chat.PresenceEvent)
	onTypers   func(active []string)

	mu           sync.Mutex
	state        chat.ConnectionState
	name         string
	language     string
	pendingLang  string
	joinedAt     time.Time
	subs         []*channel.Subscription
	away         map[string]bool
	runCtx       context.Context
	cancel       context.CancelFunc
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithTypingTTL overrides how long a received typing signal stays displayed
// without a repeat.
func WithTypingTTL(d time.Duration) ControllerOption {
	return func(c *Controller) { c.typingTTL = d }
}

// WithInviteBaseURL overrides the base URL embedded in the QR invite message.
func WithInviteBaseURL(u string) ControllerOption {
	return func(c *Controller) { c.inviteBaseURL = strings.TrimRight(u, "/") }
}

// WithTranscriber enables the voice input path.
func WithTranscriber(t *translate.Transcriber) ControllerOption {
	return func(c *Controller) { c.transcriber = t }
}

// OnMessage registers a callback invoked for every log append.
func OnMessage(fn func(chat.Message)) ControllerOption {
	return func(c *Controller) { c.onMessage = fn }
}

// OnPresence registers a callback for typing/away/returned signals.
func OnPresence(fn func(chat.PresenceEvent)) ControllerOption {
	return func(c *Controller) { c.onPresence = fn }
}

// OnTypers registers a callback invoked when the displayed typer set changes.
func OnTypers(fn func(active []string)) ControllerOption {
	return func(c *Controller) { c.onTypers = fn }
}

// New builds a controller in the Connecting state. The channel, cache and
// guard are injected; their lifecycles belong to the caller, not to this
// session.
func New(ch channel.Channel, cache *translate.Cache, invite *guard.Guard, roomID, preferredLanguage string, opts ...ControllerOption) *Controller {
	c := &Controller{
		ch:            ch,
		cache:         cache,
		invite:        invite,
		logger:        zerolog.Nop(),
		roomID:        roomID,
		language:      translate.NormalizeLang(preferredLanguage),
		inviteBaseURL: "https://babelchat.app",
		state:         chat.StateConnecting,
		away:          make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.msgLog = NewMessageLog(c.language)
	c.indicator = presence.NewIndicator(c.typingTTL, func(active []string) {
		if c.onTypers != nil {
			c.onTypers(active)
		}
	})
	return c
}

// Start subscribes the connected handler and opens the channel. If the
// transport never connects, the session stays Connecting; that is a pending
// state, not an error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.subs = append(c.subs, c.ch.Subscribe(chat.EventConnected, func([]byte) {
		c.handleConnected()
	}))
	c.mu.Unlock()
	return c.ch.Connect(ctx)
}

func (c *Controller) handleConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case chat.StateConnecting:
		c.state = chat.StateAwaitingName
		c.logger.Info().Str("module", "session").Str("room", c.roomID).Msg("channel up, awaiting display name")
	case chat.StateJoined:
		// Reconnect: re-emitting the join request and re-requesting history
		// is what makes rejoin idempotent at the protocol level. The join
		// announcement is NOT re-synthesized here.
		c.logger.Info().Str("module", "session").Str("room", c.roomID).Msg("reconnected, rejoining room")
		c.emitJoinLocked()
		c.emitHistoryRequestLocked()
	}
}

func (c *Controller) emitJoinLocked() {
	_ = c.ch.Emit(chat.EventJoinRoom, chat.JoinPayload{
		RoomID:   c.roomID,
		Name:     c.name,
		Language: c.language,
	})
}

func (c *Controller) emitHistoryRequestLocked() {
	_ = c.ch.Emit(chat.EventRequestHistory, chat.HistoryRequestPayload{RoomID: c.roomID})
}

// Join supplies the display name and moves AwaitingName -> Joined: inbound
// subscriptions are registered, the join request goes out, the join
// announcement is synthesized, and the invite message fires if the guard
// allows it.
func (c *Controller) Join(name string) error {
	c.mu.Lock()
	if c.state != chat.StateAwaitingName {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: state=%s", ErrNotAwaitingName, state)
	}

	c.name = name
	c.state = chat.StateJoined
	c.joinedAt = time.Now().UTC()
	c.tracker = presence.NewTracker(c.ch, c.roomID, name, presence.WithTrackerLogger(c.logger))

	// Subscriptions are registered before the join request goes out so the
	// history replay triggered by the join is never dropped. Re-joining
	// replaces handlers rather than stacking them (last-wins).
	c.subscribeLocked(chat.EventSendMessage, c.handleInboundMessage)
	c.subscribeLocked(chat.EventSendSystemMessage, c.handleInboundMessage)
	c.subscribeLocked(chat.EventMessageHistory, c.handleHistory)
	c.subscribeLocked(chat.EventUserTyping, c.handleTyping)
	c.subscribeLocked(chat.EventUserAway, c.handleAway)
	c.subscribeLocked(chat.EventUserReturned, c.handleReturned)
	c.subscribeLocked(chat.EventLanguageChangeAck, c.handleLanguageAck)

	c.emitJoinLocked()
	c.mu.Unlock()

	c.announce(name, fmt.Sprintf("%s has joined the chat", name), chat.KindSystem)

	if c.invite != nil && c.invite.ShouldSend() {
		c.announce(name,
			fmt.Sprintf("Scan the QR code to invite friends: %s/join/%s", c.inviteBaseURL, c.roomID),
			chat.KindQR,
		)
		c.invite.MarkSent()
	}

	c.logger.Info().Str("module", "session").Str("room", c.roomID).Str("name", name).Msg("joined room")
	return nil
}

func (c *Controller) subscribeLocked(event string, h channel.Handler) {
	c.subs = append(c.subs, c.ch.Subscribe(event, h))
}

// announce synthesizes a system message, appends it locally and emits it
// fire-and-forget. The local append carries the same ID as the emit, so the
// server echo deduplicates.
func (c *Controller) announce(sender, text string, kind chat.MessageKind) {
	msg := chat.Message{
		ID:        uuid.NewString(),
		RoomID:    c.roomID,
		Sender:    sender,
		Text:      text,
		Language:  wireLanguage,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	c.appendAndNotify(msg)
	_ = c.ch.Emit(chat.EventSendSystemMessage, msg)
}

// Send translates the user's input through the cache and emits it. The
// append happens locally first so the sender sees the message immediately;
// the broadcast echo is deduplicated by ID.
func (c *Controller) Send(text string) error {
	c.mu.Lock()
	if c.state != chat.StateJoined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	ctx := c.runCtx
	name, room := c.name, c.roomID
	c.mu.Unlock()

	msg := chat.Message{
		ID:        uuid.NewString(),
		RoomID:    room,
		Sender:    name,
		Text:      c.cache.TranslateOne(ctx, text, wireLanguage),
		Language:  wireLanguage,
		Kind:      chat.KindUser,
		CreatedAt: time.Now().UTC(),
	}
	c.appendAndNotify(msg)
	return c.ch.Emit(chat.EventSendMessage, msg)
}

// SendVoice transcribes recorded audio and sends the recognized text. A
// transcription fault drops the pending voice message and returns the
// session to idle; it is logged, never fatal.
func (c *Controller) SendVoice(audio io.Reader, filename string) error {
	c.mu.Lock()
	if c.state != chat.StateJoined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	ctx := c.runCtx
	c.mu.Unlock()

	if c.transcriber == nil {
		return errors.New("transcription not configured")
	}
	text, err := c.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		c.logger.Warn().Err(err).Str("module", "session").Msg("transcription failed, dropping voice message")
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.Send(text)
}

// Keystroke forwards a local keystroke to the presence tracker.
func (c *Controller) Keystroke() {
	c.mu.Lock()
	tracker := c.tracker
	joined := c.state == chat.StateJoined
	c.mu.Unlock()
	if joined && tracker != nil {
		tracker.Keystroke()
	}
}

// SetVisible forwards a document-visibility transition.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	tracker := c.tracker
	joined := c.state == chat.StateJoined
	c.mu.Unlock()
	if joined && tracker != nil {
		tracker.SetVisible(visible)
	}
}

// SetLanguage asks the server to switch the preferred language. The local
// log is re-tagged only once the server acknowledges.
func (c *Controller) SetLanguage(lang string) error {
	lang = translate.NormalizeLang(lang)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != chat.StateJoined {
		return ErrNotJoined
	}
	c.pendingLang = lang
	return c.ch.Emit(chat.EventLanguageChange, chat.LanguageChangePayload{
		RoomID:            c.roomID,
		PreferredLanguage: lang,
	})
}

// Leave emits the departure announcement fire-and-forget, then tears down:
// all subscriptions cancelled, timers cleared, guard flag reset. Terminal.
func (c *Controller) Leave() error {
	c.mu.Lock()
	if c.state != chat.StateJoined {
		c.mu.Unlock()
		return ErrNotJoined
	}
	c.state = chat.StateLeaving
	name := c.name
	c.mu.Unlock()

	// Attempted-send before teardown; the page may close immediately after,
	// so no acknowledgement is waited for.
	c.announce(name, fmt.Sprintf("%s has left the chat", name), chat.KindSystem)
	_ = c.ch.Emit(chat.EventLeaveRoom, chat.LeavePayload{RoomID: c.roomID, Name: name})

	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	tracker := c.tracker
	c.state = chat.StateDisconnected
	cancel := c.cancel
	c.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	if tracker != nil {
		tracker.Stop()
	}
	c.indicator.Stop()
	if c.invite != nil {
		c.invite.Reset()
	}
	if cancel != nil {
		cancel()
	}
	c.logger.Info().Str("module", "session").Str("room", c.roomID).Msg("left room")
	return nil
}

func (c *Controller) handleInboundMessage(payload []byte) {
	var msg chat.Message
	if err := sonic.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn().Err(err).Str("module", "session").Msg("dropping malformed message")
		return
	}
	c.receive(msg)
}

func (c *Controller) handleHistory(payload []byte) {
	var history []chat.Message
	if err := sonic.Unmarshal(payload, &history); err != nil {
		c.logger.Warn().Err(err).Str("module", "session").Msg("dropping malformed history")
		return
	}
	for _, msg := range history {
		c.receive(msg)
	}
}

// receive translates an inbound message into the preferred language and
// appends it. Results for a discarded session are abandoned.
func (c *Controller) receive(msg chat.Message) {
	c.mu.Lock()
	if c.state != chat.StateJoined {
		c.mu.Unlock()
		return
	}
	ctx := c.runCtx
	target := c.language
	c.mu.Unlock()

	if msg.Text == "" || (msg.RoomID != "" && msg.RoomID != c.roomID) {
		return
	}
	if translate.NormalizeLang(msg.Language) != target {
		msg.Text = c.cache.TranslateOne(ctx, msg.Text, target)
		msg.Language = target
	}
	if ctx.Err() != nil {
		// Session was discarded while the translation was in flight.
		return
	}
	c.appendAndNotify(msg)
}

func (c *Controller) appendAndNotify(msg chat.Message) {
	if !c.msgLog.Append(msg) {
		return
	}
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

func (c *Controller) handleTyping(payload []byte) {
	p, ok := c.decodePresence(payload)
	if !ok {
		return
	}
	c.indicator.Mark(p.Name)
	c.notifyPresence(p, chat.PresenceTyping)
}

func (c *Controller) handleAway(payload []byte) {
	p, ok := c.decodePresence(payload)
	if !ok {
		return
	}
	c.mu.Lock()
	c.away[p.Name] = true
	c.mu.Unlock()
	c.notifyPresence(p, chat.PresenceAway)
}

func (c *Controller) handleReturned(payload []byte) {
	p, ok := c.decodePresence(payload)
	if !ok {
		return
	}
	c.mu.Lock()
	delete(c.away, p.Name)
	c.mu.Unlock()
	c.notifyPresence(p, chat.PresenceReturned)
}

// decodePresence filters out malformed payloads and the local user's own
// relayed signals.
func (c *Controller) decodePresence(payload []byte) (chat.PresencePayload, bool) {
	var p chat.PresencePayload
	if err := sonic.Unmarshal(payload, &p); err != nil {
		c.logger.Warn().Err(err).Str("module", "session").Msg("dropping malformed presence event")
		return p, false
	}
	c.mu.Lock()
	self := p.Name == c.name
	c.mu.Unlock()
	if p.Name == "" || self {
		return p, false
	}
	return p, true
}

func (c *Controller) notifyPresence(p chat.PresencePayload, kind chat.PresenceKind) {
	if c.onPresence != nil {
		c.onPresence(chat.PresenceEvent{RoomID: p.RoomID, Who: p.Name, Kind: kind})
	}
}

func (c *Controller) handleLanguageAck([]byte) {
	c.mu.Lock()
	if c.pendingLang != "" {
		c.language = c.pendingLang
		c.pendingLang = ""
		c.msgLog.SetDisplayLanguage(c.language)
		c.logger.Info().Str("module", "session").Str("lang", c.language).Msg("language change acknowledged")
	}
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Controller) State() chat.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the membership attempt.
func (c *Controller) Session() chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return chat.Session{
		RoomID:            c.roomID,
		LocalDisplayName:  c.name,
		PreferredLanguage: c.language,
		ConnectionState:   c.state,
		JoinedAt:          c.joinedAt,
	}
}

// Log exposes the append-only message log to the UI layer.
func (c *Controller) Log() *MessageLog {
	return c.msgLog
}

// Typers returns the participants currently displayed as typing.
func (c *Controller) Typers() []string {
	return c.indicator.Active()
}

// AwayUsers returns the participants currently marked away.
func (c *Controller) AwayUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.away))
	for name := range c.away {
		names = append(names, name)
	}
	return names
}
