package broker

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhon1466/PeerDrop/internal/signaling"
)

func newTestClient(h *Hub, id string) *Client {
	c := &Client{
		ID:   id,
		hub:  h,
		send: make(chan *signaling.Message, sendBuffer),
		log:  zerolog.Nop(),
	}
	h.handleRegister(c)
	return c
}

// drain returns every message queued for c.
func drain(c *Client) []*signaling.Message {
	var out []*signaling.Message
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(msgs []*signaling.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func msg(t, room string) *signaling.Message {
	return &signaling.Message{Type: t, RoomID: room}
}

func TestCreateThenJoin(t *testing.T) {
	h := NewHub()
	host := newTestClient(h, "host")
	joiner := newTestClient(h, "joiner")

	h.handleMessage(host, msg(signaling.TypeCreateRoom, "AB12CD3"))
	created := drain(host)
	require.Len(t, created, 1)
	assert.Equal(t, signaling.TypeRoomCreated, created[0].Type)
	assert.Equal(t, "AB12CD3", created[0].RoomID)

	h.handleMessage(joiner, msg(signaling.TypeJoinRoom, "ab12cd3"))

	joined := drain(joiner)
	require.Len(t, joined, 1)
	assert.Equal(t, signaling.TypeRoomJoined, joined[0].Type)
	assert.Equal(t, "AB12CD3", joined[0].RoomID)

	notified := drain(host)
	require.Len(t, notified, 1)
	assert.Equal(t, signaling.TypePeerJoined, notified[0].Type)
	assert.Equal(t, "joiner", notified[0].From)
}

func TestJoinFullRoom(t *testing.T) {
	h := NewHub()
	host := newTestClient(h, "host")
	first := newTestClient(h, "first")
	second := newTestClient(h, "second")

	h.handleMessage(host, msg(signaling.TypeCreateRoom, "ROOM1"))
	h.handleMessage(first, msg(signaling.TypeJoinRoom, "ROOM1"))
	h.handleMessage(second, msg(signaling.TypeJoinRoom, "ROOM1"))

	assert.Equal(t, []string{signaling.TypeRoomJoined}, types(drain(first)))
	assert.Equal(t, []string{signaling.TypeRoomFull}, types(drain(second)))

	room, ok := h.rooms.Get("ROOM1")
	require.True(t, ok)
	assert.Same(t, first, room.Peer)
}

func TestHostCannotJoinOwnRoom(t *testing.T) {
	h := NewHub()
	host := newTestClient(h, "host")

	h.handleMessage(host, msg(signaling.TypeCreateRoom, "ROOM1"))
	drain(host)
	h.handleMessage(host, msg(signaling.TypeJoinRoom, "ROOM1"))

	assert.Equal(t, []string{signaling.TypeRoomFull}, types(drain(host)))
}

func TestJoinMissingRoom(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "c")

	h.handleMessage(c, msg(signaling.TypeJoinRoom, "NOPE"))

	out := drain(c)
	require.Len(t, out, 1)
	assert.Equal(t, signaling.TypeRoomNotFound, out[0].Type)
	assert.Zero(t, h.rooms.Len())
}

func TestInvalidRoomID(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "c")

	h.handleMessage(c, msg(signaling.TypeCreateRoom, "not valid!"))
	h.handleMessage(c, msg(signaling.TypeJoinRoom, ""))

	assert.Equal(t, []string{signaling.TypeRoomInvalid, signaling.TypeRoomInvalid}, types(drain(c)))
	assert.Zero(t, h.rooms.Len())
}

func TestCreateRoomOverwrites(t *testing.T) {
	h := NewHub()
	a := newTestClient(h, "a")
	b := newTestClient(h, "b")

	h.handleMessage(a, msg(signaling.TypeCreateRoom, "SAME"))
	h.handleMessage(b, msg(signaling.TypeCreateRoom, "SAME"))

	room, ok := h.rooms.Get("SAME")
	require.True(t, ok)
	assert.Same(t, b, room.Host)
	assert.Equal(t, 1, h.rooms.Len())
}

func TestRelay(t *testing.T) {
	h := NewHub()
	host := newTestClient(h, "host")
	joiner := newTestClient(h, "joiner")
	outsider := newTestClient(h, "outsider")

	h.handleMessage(host, msg(signaling.TypeCreateRoom, "R1"))
	h.handleMessage(joiner, msg(signaling.TypeJoinRoom, "R1"))
	drain(host)
	drain(joiner)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.handleMessage(host, &signaling.Message{Type: signaling.TypeOffer, RoomID: "r1", Payload: payload})

	got := drain(joiner)
	require.Len(t, got, 1)
	assert.Equal(t, signaling.TypeOffer, got[0].Type)
	assert.Equal(t, "host", got[0].From)
	assert.Equal(t, "R1", got[0].RoomID)
	assert.JSONEq(t, string(payload), string(got[0].Payload))
	assert.Empty(t, drain(host), "sender must not receive its own relay")

	h.handleMessage(joiner, &signaling.Message{Type: signaling.TypeICECandidate, RoomID: "R1", Payload: json.RawMessage(`{}`)})
	back := drain(host)
	require.Len(t, back, 1)
	assert.Equal(t, "joiner", back[0].From)

	// Non-members and unknown rooms are dropped silently.
	h.handleMessage(outsider, &signaling.Message{Type: signaling.TypeAnswer, RoomID: "R1"})
	h.handleMessage(outsider, &signaling.Message{Type: signaling.TypeAnswer, RoomID: "GHOST"})
	assert.Empty(t, drain(host))
	assert.Empty(t, drain(joiner))
	assert.Empty(t, drain(outsider))
}

func TestRelayTypesAreForwarded(t *testing.T) {
	h := NewHub()
	host := newTestClient(h, "host")
	joiner := newTestClient(h, "joiner")

	h.handleMessage(host, msg(signaling.TypeCreateRoom, "R1"))
	h.handleMessage(joiner, msg(signaling.TypeJoinRoom, "R1"))
	drain(host)
	drain(joiner)

	for _, typ := range []string{signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate} {
		require.True(t, signaling.IsRelayType(typ))
		h.handleMessage(host, &signaling.Message{Type: typ, RoomID: "R1", Payload: json.RawMessage(`{}`)})

		got := drain(joiner)
		require.Len(t, got, 1, typ)
		assert.Equal(t, typ, got[0].Type)
		assert.Empty(t, drain(host), typ)
	}
}

func TestDisconnectClosesRoom(t *testing.T) {
	for _, leaver := range []string{"host", "joiner"} {
		t.Run(leaver, func(t *testing.T) {
			h := NewHub()
			host := newTestClient(h, "host")
			joiner := newTestClient(h, "joiner")

			h.handleMessage(host, msg(signaling.TypeCreateRoom, "R1"))
			h.handleMessage(joiner, msg(signaling.TypeJoinRoom, "R1"))
			drain(host)
			drain(joiner)

			gone, stays := host, joiner
			if leaver == "joiner" {
				gone, stays = joiner, host
			}

			h.handleUnregister(gone)
			h.handleUnregister(gone)

			assert.Equal(t, []string{signaling.TypeRoomClosed}, types(drain(stays)))
			assert.Zero(t, h.rooms.Len())

			_, open := <-gone.send
			assert.False(t, open, "send channel of the leaver is closed")
		})
	}
}

func TestDisconnectLoneHost(t *testing.T) {
	h := NewHub()
	host := newTestClient(h, "host")
	h.handleMessage(host, msg(signaling.TypeCreateRoom, "R1"))

	h.handleUnregister(host)
	assert.Zero(t, h.rooms.Len())
}

func TestUnknownMessageType(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, "c")

	h.handleMessage(c, msg("bogus", ""))

	out := drain(c)
	require.Len(t, out, 1)
	assert.Equal(t, signaling.TypeError, out[0].Type)

	var p signaling.ErrorPayload
	require.NoError(t, out[0].DecodePayload(&p))
	assert.Contains(t, p.Error, "bogus")
}
