package web

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roasbeef/marquee/internal/stream"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, fx *webFixture) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(fx.ts.URL, "http://", "ws://", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(
		time.Now().Add(5*time.Second)))

	var msg WSMessage
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))

	return msg
}

// TestWebSocketConnectAndSeed checks that a new client receives the
// connection confirmation followed by the current stream view.
func TestWebSocketConnectAndSeed(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)
	conn := dialWS(t, fx)

	msg := readWS(t, conn)
	require.Equal(t, WSMsgTypeConnected, msg.Type)

	msg = readWS(t, conn)
	require.Equal(t, WSMsgTypeSnapshot, msg.Type)
}

// TestWebSocketPingPong checks the application-level ping round trip.
func TestWebSocketPingPong(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)
	conn := dialWS(t, fx)

	// Drain connect and seed messages.
	readWS(t, conn)
	readWS(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type": "ping"}`)))

	msg := readWS(t, conn)
	require.Equal(t, WSMsgTypePong, msg.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type": "bogus"}`)))

	msg = readWS(t, conn)
	require.Equal(t, WSMsgTypeError, msg.Type)
}

// TestWebSocketSnapshotBroadcast checks that published snapshots reach
// connected clients.
func TestWebSocketSnapshotBroadcast(t *testing.T) {
	t.Parallel()

	fx := newWebFixture(t)
	conn := dialWS(t, fx)

	// Drain connect and seed messages.
	readWS(t, conn)
	readWS(t, conn)

	fx.server.PublishSnapshot(stream.Snapshot{
		State: stream.StateIdle{},
	})

	msg := readWS(t, conn)
	require.Equal(t, WSMsgTypeSnapshot, msg.Type)
}
