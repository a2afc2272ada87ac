package channel

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/babelchat/babelchat/internal/model/chat"
)

const (
	defaultRetryInterval = 2 * time.Second
	writeTimeout         = 5 * time.Second
	sendBufferSize       = 64
)

// WSChannel implements Channel over a gorilla websocket connection with
// automatic reconnection. All inbound events and the synthetic "connected"
// signal are dispatched from a single goroutine, so handlers observe them
// in arrival order.
type WSChannel struct {
	*registry

	url           string
	dialer        *websocket.Dialer
	retryInterval time.Duration
	logger        zerolog.Logger

	send chan []byte
	done chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
	conn    *websocket.Conn
}

// Option configures a WSChannel.
type Option func(*WSChannel)

// WithRetryInterval overrides the reconnect backoff.
func WithRetryInterval(d time.Duration) Option {
	return func(c *WSChannel) { c.retryInterval = d }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *WSChannel) { c.logger = logger }
}

// NewWS builds a websocket channel for the given ws:// or wss:// URL.
func NewWS(url string, opts ...Option) *WSChannel {
	c := &WSChannel{
		registry:      newRegistry(),
		url:           url,
		dialer:        websocket.DefaultDialer,
		retryInterval: defaultRetryInterval,
		logger:        zerolog.Nop(),
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the dial/reconnect loop. It returns immediately; the
// "connected" event fires on each successful (re)connection.
func (c *WSChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	go c.run(ctx)
	return nil
}

func (c *WSChannel) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn().Err(err).Str("module", "channel").Msg("dial failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(c.retryInterval):
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info().Str("module", "channel").Str("url", c.url).Msg("connected")

		stop := make(chan struct{})
		go c.writePump(conn, stop)

		// Fired before the read loop so subscribers see the connected
		// signal ahead of any inbound event from this connection.
		if h := c.lookup(chat.EventConnected); h != nil {
			h(nil)
		}

		c.readLoop(ctx, conn)
		close(stop)
		_ = conn.Close()

		c.mu.Lock()
		c.conn = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.logger.Warn().Str("module", "channel").Msg("connection lost, reconnecting")
	}
}

func (c *WSChannel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug().Err(err).Str("module", "channel").Msg("read error")
			return
		}
		env, err := DecodeEnvelope(data)
		if err != nil {
			// Malformed inbound payloads are dropped, never fatal.
			c.logger.Warn().Err(err).Str("module", "channel").Msg("dropping malformed event")
			continue
		}
		if h := c.lookup(env.Event); h != nil {
			h(env.Payload)
		}
	}
}

func (c *WSChannel) writePump(conn *websocket.Conn, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case data := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug().Err(err).Str("module", "channel").Msg("write error")
				return
			}
		}
	}
}

// Emit queues an event for sending. Best-effort: events queued while the
// transport is down are sent after reconnection, and an event is dropped
// when the buffer is full.
func (c *WSChannel) Emit(event string, payload any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	data, err := EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn().Str("module", "channel").Str("event", event).Msg("send buffer full, dropping event")
	}
	return nil
}

// Subscribe registers a handler, last-wins per event name.
func (c *WSChannel) Subscribe(event string, h Handler) *Subscription {
	return c.subscribe(event, h)
}

// Close tears down the transport; further Emit/Connect calls fail.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return nil
}
