package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ch chan *Message
}

func (f *fakeSource) Incoming() <-chan *Message { return f.ch }

func TestNormalizeRoomID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "AB12CD3", want: "AB12CD3"},
		{in: "ab12cd3", want: "AB12CD3"},
		{in: "  xyz  ", want: "XYZ"},
		{in: "ABCDEFGHIJKLMNOPQRST", want: "ABCDEFGHIJKLMNOPQRST"},
		{in: "ABCDEFGHIJKLMNOPQRSTU", wantErr: true},
		{in: "", wantErr: true},
		{in: "AB-12", wantErr: true},
		{in: "ÄB12", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeRoomID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRoomID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRoomInputTruncates(t *testing.T) {
	got, err := ParseRoomInput("abcdefghijklmnopqrstuvwxyz")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRST", got)
}

func TestGenerateRoomID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := GenerateRoomID()
		assert.Len(t, id, GeneratedRoomIDLength)

		normalized, err := NormalizeRoomID(id)
		require.NoError(t, err)
		assert.Equal(t, id, normalized)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(TypeOffer, "AB12CD3", map[string]string{"sdp": "v=0"})
	require.NoError(t, err)

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer","room_id":"AB12CD3","payload":{"sdp":"v=0"}}`, string(raw))

	var decoded Message
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var payload map[string]string
	require.NoError(t, decoded.DecodePayload(&payload))
	assert.Equal(t, "v=0", payload["sdp"])

	empty := &Message{Type: TypeAnswer}
	assert.Error(t, empty.DecodePayload(&payload))
}

func TestIsRelayType(t *testing.T) {
	assert.True(t, IsRelayType(TypeOffer))
	assert.True(t, IsRelayType(TypeAnswer))
	assert.True(t, IsRelayType(TypeICECandidate))
	assert.False(t, IsRelayType(TypeJoinRoom))
}

func TestHandlerRoutes(t *testing.T) {
	src := &fakeSource{ch: make(chan *Message, 8)}
	h := NewHandler(src)
	go h.Start()
	defer h.Close()

	src.ch <- &Message{Type: TypeRoomCreated, RoomID: "AB12CD3"}
	src.ch <- &Message{Type: TypePeerJoined, From: "conn-2"}
	src.ch <- &Message{Type: TypeICECandidate, RoomID: "AB12CD3", Payload: json.RawMessage(`{}`)}
	src.ch <- &Message{Type: TypeRoomFull, RoomID: "AB12CD3"}
	src.ch <- ErrorMessage("boom")
	src.ch <- &Message{Type: TypeRoomClosed}

	assert.Equal(t, "AB12CD3", recv(t, h.RoomCreated))
	assert.Equal(t, "conn-2", recv(t, h.PeerJoined))
	assert.Equal(t, TypeICECandidate, recv(t, h.Signal).Type)
	assert.ErrorIs(t, recv(t, h.Error), ErrRoomFull)
	err := recv(t, h.Error)
	assert.ErrorIs(t, err, ErrServer)
	assert.ErrorContains(t, err, "boom")
	recv(t, h.RoomClosed)

	close(src.ch)
	select {
	case <-h.Done:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop after source closed")
	}
}

func recv[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestSendFailsAfterConnectionDrops(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient("ws" + strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	for range c.Incoming() {
	}

	// More sends than the queue holds: none may block.
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 64; i++ {
			if err := c.Send(TypeOffer, "R1", nil); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after the connection dropped")
	}
}
