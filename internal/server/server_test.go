package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhon1466/PeerDrop/internal/broker"
	"github.com/jhon1466/PeerDrop/internal/signaling"
)

func startBroker(t *testing.T) string {
	t.Helper()

	hub := broker.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(hub))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg *signaling.Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) *signaling.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg signaling.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewRouter(broker.NewHub()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")
}

func TestBrokerRoundTrip(t *testing.T) {
	url := startBroker(t)
	host := dial(t, url)
	joiner := dial(t, url)
	late := dial(t, url)

	send(t, host, &signaling.Message{Type: signaling.TypeCreateRoom, RoomID: "AB12CD3"})
	created := read(t, host)
	assert.Equal(t, signaling.TypeRoomCreated, created.Type)

	send(t, joiner, &signaling.Message{Type: signaling.TypeJoinRoom, RoomID: "ab12cd3"})
	assert.Equal(t, signaling.TypeRoomJoined, read(t, joiner).Type)

	peerJoined := read(t, host)
	assert.Equal(t, signaling.TypePeerJoined, peerJoined.Type)
	require.NotEmpty(t, peerJoined.From)

	send(t, late, &signaling.Message{Type: signaling.TypeJoinRoom, RoomID: "AB12CD3"})
	assert.Equal(t, signaling.TypeRoomFull, read(t, late).Type)

	offer, err := signaling.NewMessage(signaling.TypeOffer, "AB12CD3", map[string]string{"type": "offer", "sdp": "v=0"})
	require.NoError(t, err)
	send(t, host, offer)

	relayed := read(t, joiner)
	assert.Equal(t, signaling.TypeOffer, relayed.Type)
	assert.NotEmpty(t, relayed.From)
	assert.NotEqual(t, peerJoined.From, relayed.From, "from is the host's id, not the joiner's")
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(relayed.Payload))

	// The host leaves: the joiner is told exactly once and the code is free again.
	require.NoError(t, host.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	host.Close()

	assert.Equal(t, signaling.TypeRoomClosed, read(t, joiner).Type)

	send(t, late, &signaling.Message{Type: signaling.TypeJoinRoom, RoomID: "AB12CD3"})
	assert.Equal(t, signaling.TypeRoomNotFound, read(t, late).Type)
}

func TestMalformedMessageKeepsConnection(t *testing.T) {
	url := startBroker(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, signaling.TypeError, read(t, conn).Type)

	send(t, conn, &signaling.Message{Type: signaling.TypeJoinRoom, RoomID: "NOPE"})
	assert.Equal(t, signaling.TypeRoomNotFound, read(t, conn).Type)
}

func TestServerRunShutsDown(t *testing.T) {
	s := New("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)

	go func() { done <- s.Run(ctx, ready) }()

	var addr net.Addr
	select {
	case addr = <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr.String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestTruncatedFrameKeepsRoom(t *testing.T) {
	url := startBroker(t)
	host := dial(t, url)
	joiner := dial(t, url)

	send(t, host, &signaling.Message{Type: signaling.TypeCreateRoom, RoomID: "R1R1R1R"})
	assert.Equal(t, signaling.TypeRoomCreated, read(t, host).Type)
	send(t, joiner, &signaling.Message{Type: signaling.TypeJoinRoom, RoomID: "R1R1R1R"})
	assert.Equal(t, signaling.TypeRoomJoined, read(t, joiner).Type)
	assert.Equal(t, signaling.TypePeerJoined, read(t, host).Type)

	for _, frame := range []string{`{"type":"offer"`, ""} {
		require.NoError(t, host.WriteMessage(websocket.TextMessage, []byte(frame)))
		assert.Equal(t, signaling.TypeError, read(t, host).Type, "frame %q", frame)
	}

	// The room survives: the next message the joiner sees is the relayed offer.
	offer, err := signaling.NewMessage(signaling.TypeOffer, "R1R1R1R", map[string]string{"type": "offer", "sdp": "v=0"})
	require.NoError(t, err)
	send(t, host, offer)
	assert.Equal(t, signaling.TypeOffer, read(t, joiner).Type)
}
