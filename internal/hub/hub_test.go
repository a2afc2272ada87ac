package hub

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/babelchat/babelchat/internal/channel"
	"github.com/babelchat/babelchat/internal/model/chat"
)

func newTestHub(t *testing.T, historyLimit int) string {
	t.Helper()
	h := New(zerolog.Nop(), historyLimit)
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := channel.EncodeEnvelope(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) channel.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := channel.DecodeEnvelope(data)
	require.NoError(t, err)
	return env
}

func join(t *testing.T, conn *websocket.Conn, roomID, name string) {
	t.Helper()
	send(t, conn, chat.EventJoinRoom, chat.JoinPayload{RoomID: roomID, Name: name, Language: "en"})
	env := readEnvelope(t, conn)
	require.Equal(t, chat.EventMessageHistory, env.Event)
}

func expectNothing(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected no frame")
	}
}

func TestJoinReplaysEmptyHistory(t *testing.T) {
	url := newTestHub(t, 0)
	conn := dial(t, url)

	send(t, conn, chat.EventJoinRoom, chat.JoinPayload{RoomID: "abcde", Name: "Alice", Language: "en"})
	env := readEnvelope(t, conn)
	require.Equal(t, chat.EventMessageHistory, env.Event)

	var history []chat.Message
	require.NoError(t, json.Unmarshal(env.Payload, &history))
	require.Empty(t, history)
}

func TestBroadcastEchoesSenderAndReachesRoom(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	bob := dial(t, url)
	join(t, alice, "abcde", "Alice")
	join(t, bob, "abcde", "Bob")

	send(t, alice, chat.EventSendMessage, chat.Message{
		ID: "m1", Sender: "Alice", Text: "hello", Language: "en", Kind: chat.KindUser,
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEnvelope(t, conn)
		require.Equal(t, chat.EventSendMessage, env.Event)
		var msg chat.Message
		require.NoError(t, json.Unmarshal(env.Payload, &msg))
		require.Equal(t, "m1", msg.ID)
		require.Equal(t, "hello", msg.Text)
		require.Equal(t, "abcde", msg.RoomID)
		require.False(t, msg.CreatedAt.IsZero(), "hub must stamp messages")
	}
}

func TestMessagesDoNotCrossRooms(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	carol := dial(t, url)
	join(t, alice, "abcde", "Alice")
	join(t, carol, "zzzzz", "Carol")

	send(t, alice, chat.EventSendMessage, chat.Message{
		ID: "m1", Sender: "Alice", Text: "hello", Kind: chat.KindUser,
	})
	readEnvelope(t, alice) // own echo
	expectNothing(t, carol)
}

func TestHistoryReplayedToLateJoiner(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	join(t, alice, "abcde", "Alice")

	send(t, alice, chat.EventSendMessage, chat.Message{
		ID: "m1", Sender: "Alice", Text: "first", Kind: chat.KindUser,
	})
	readEnvelope(t, alice) // own echo

	bob := dial(t, url)
	send(t, bob, chat.EventJoinRoom, chat.JoinPayload{RoomID: "abcde", Name: "Bob", Language: "en"})
	env := readEnvelope(t, bob)
	require.Equal(t, chat.EventMessageHistory, env.Event)

	var history []chat.Message
	require.NoError(t, json.Unmarshal(env.Payload, &history))
	require.Len(t, history, 1)
	require.Equal(t, "first", history[0].Text)
}

func TestHistoryBounded(t *testing.T) {
	url := newTestHub(t, 2)
	alice := dial(t, url)
	join(t, alice, "abcde", "Alice")

	for _, text := range []string{"one", "two", "three"} {
		send(t, alice, chat.EventSendMessage, chat.Message{Sender: "Alice", Text: text, Kind: chat.KindUser})
		readEnvelope(t, alice)
	}

	send(t, alice, chat.EventRequestHistory, chat.HistoryRequestPayload{RoomID: "abcde"})
	env := readEnvelope(t, alice)
	require.Equal(t, chat.EventMessageHistory, env.Event)

	var history []chat.Message
	require.NoError(t, json.Unmarshal(env.Payload, &history))
	require.Len(t, history, 2)
	require.Equal(t, "two", history[0].Text)
	require.Equal(t, "three", history[1].Text)
}

func TestPresenceRelayedToOthersOnly(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	bob := dial(t, url)
	join(t, alice, "abcde", "Alice")
	join(t, bob, "abcde", "Bob")

	send(t, alice, chat.EventUserTyping, chat.PresencePayload{Name: "Alice"})

	env := readEnvelope(t, bob)
	require.Equal(t, chat.EventUserTyping, env.Event)
	var p chat.PresencePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	require.Equal(t, "Alice", p.Name)
	require.Equal(t, "abcde", p.RoomID)

	expectNothing(t, alice)

	// Presence never lands in history.
	send(t, bob, chat.EventRequestHistory, chat.HistoryRequestPayload{RoomID: "abcde"})
	hist := readEnvelope(t, bob)
	var history []chat.Message
	require.NoError(t, json.Unmarshal(hist.Payload, &history))
	require.Empty(t, history)
}

func TestLanguageChangeAcknowledged(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	join(t, alice, "abcde", "Alice")

	send(t, alice, chat.EventLanguageChange, chat.LanguageChangePayload{PreferredLanguage: "fr"})
	env := readEnvelope(t, alice)
	require.Equal(t, chat.EventLanguageChangeAck, env.Event)
}

func TestMalformedFramesIgnored(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	join(t, alice, "abcde", "Alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{nope")))

	// Connection survives; a normal message still round-trips.
	send(t, alice, chat.EventSendMessage, chat.Message{Sender: "Alice", Text: "still here", Kind: chat.KindUser})
	env := readEnvelope(t, alice)
	require.Equal(t, chat.EventSendMessage, env.Event)
}

func TestLeaveStopsDelivery(t *testing.T) {
	url := newTestHub(t, 0)
	alice := dial(t, url)
	bob := dial(t, url)
	join(t, alice, "abcde", "Alice")
	join(t, bob, "abcde", "Bob")

	send(t, bob, chat.EventLeaveRoom, chat.LeavePayload{RoomID: "abcde"})
	// Leave carries no reply; give the hub a moment to unregister.
	time.Sleep(50 * time.Millisecond)

	send(t, alice, chat.EventSendMessage, chat.Message{Sender: "Alice", Text: "anyone?", Kind: chat.KindUser})
	readEnvelope(t, alice) // own echo
	expectNothing(t, bob)
}
