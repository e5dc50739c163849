package broker

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jhon1466/PeerDrop/internal/signaling"
)

type inbound struct {
	client *Client
	msg    *signaling.Message
}

// Hub is the central brain of the signaling server.
// It owns every room and client; all state changes happen on the Run goroutine.
type Hub struct {
	rooms   *Registry
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}

	log zerolog.Logger
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		rooms:      NewRegistry(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "broker").Logger(),
	}
}

// Register hands a new connection to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister tells the hub a connection is gone.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch queues an inbound message from c.
func (h *Hub) Dispatch(c *Client, msg *signaling.Message) {
	select {
	case h.inbound <- inbound{client: c, msg: msg}:
	case <-h.done:
	}
}

// Run is the single goroutine that manages all rooms and clients. It returns
// when ctx is cancelled, closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
		}
		h.clients = nil
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case in := <-h.inbound:
			h.handleMessage(in.client, in.msg)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = struct{}{}
	c.log.Info().Int("clients", len(h.clients)).Msg("client connected")
}

// handleUnregister deletes every room c belongs to and tells the remaining
// member that the room is closed.
func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	for _, room := range h.rooms.RoomsOf(c) {
		other := room.Other(c)
		h.rooms.Delete(room.ID)
		h.log.Info().Str("room_id", room.ID).Str("conn_id", c.ID).Msg("room closed")

		if other != nil {
			other.deliver(&signaling.Message{Type: signaling.TypeRoomClosed, RoomID: room.ID})
		}
	}

	delete(h.clients, c)
	close(c.send)
	c.log.Info().Int("clients", len(h.clients)).Msg("client disconnected")
}

func (h *Hub) handleMessage(c *Client, msg *signaling.Message) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	switch {
	case msg.Type == signaling.TypeCreateRoom:
		h.createRoom(c, msg.RoomID)

	case msg.Type == signaling.TypeJoinRoom:
		h.joinRoom(c, msg.RoomID)

	case signaling.IsRelayType(msg.Type):
		h.relay(c, msg)

	default:
		c.log.Debug().Str("type", msg.Type).Msg("unknown message type")
		c.deliver(signaling.ErrorMessage("unknown message type: " + msg.Type))
	}
}

// createRoom registers a room with c as host. An existing room with the same
// id is replaced; its members are not notified.
func (h *Hub) createRoom(c *Client, rawID string) {
	id, err := signaling.NormalizeRoomID(rawID)
	if err != nil {
		c.log.Debug().Str("room_id", rawID).Msg("create rejected: invalid room id")
		c.deliver(&signaling.Message{Type: signaling.TypeRoomInvalid, RoomID: rawID})
		return
	}

	_, replaced := h.rooms.Create(id, c)
	if replaced != nil {
		h.log.Warn().Str("room_id", id).Str("conn_id", c.ID).
			Str("previous_host", replaced.Host.ID).Msg("room id reused, previous room replaced")
	}

	c.log.Info().Str("room_id", id).Msg("room created")
	c.deliver(&signaling.Message{Type: signaling.TypeRoomCreated, RoomID: id})
}

func (h *Hub) joinRoom(c *Client, rawID string) {
	id, err := signaling.NormalizeRoomID(rawID)
	if err != nil {
		c.deliver(&signaling.Message{Type: signaling.TypeRoomInvalid, RoomID: rawID})
		return
	}

	room, ok := h.rooms.Get(id)
	if !ok {
		c.log.Debug().Str("room_id", id).Msg("join failed: room not found")
		c.deliver(&signaling.Message{Type: signaling.TypeRoomNotFound, RoomID: id})
		return
	}

	if room.Peer != nil || room.Host == c {
		c.log.Debug().Str("room_id", id).Msg("join failed: room full")
		c.deliver(&signaling.Message{Type: signaling.TypeRoomFull, RoomID: id})
		return
	}

	room.Peer = c
	c.log.Info().Str("room_id", id).Msg("joined room")

	c.deliver(&signaling.Message{Type: signaling.TypeRoomJoined, RoomID: id})
	room.Host.deliver(&signaling.Message{Type: signaling.TypePeerJoined, RoomID: id, From: c.ID})
}

// relay forwards a negotiation message, stamped with the sender's id, to the
// other member of the room. The payload is not inspected.
func (h *Hub) relay(c *Client, msg *signaling.Message) {
	id, err := signaling.NormalizeRoomID(msg.RoomID)
	if err != nil {
		c.log.Debug().Str("room_id", msg.RoomID).Msg("relay dropped: invalid room id")
		return
	}

	room, ok := h.rooms.Get(id)
	if !ok || !room.Has(c) {
		c.log.Debug().Str("room_id", id).Str("type", msg.Type).Msg("relay dropped: not in room")
		return
	}

	target := room.Other(c)
	if target == nil {
		c.log.Debug().Str("room_id", id).Str("type", msg.Type).Msg("relay dropped: no peer yet")
		return
	}

	target.deliver(&signaling.Message{
		Type:    msg.Type,
		RoomID:  id,
		From:    c.ID,
		Payload: msg.Payload,
	})
}
