package signaling

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomClosed   = errors.New("room closed by peer")
	ErrRoomInvalid  = errors.New("invalid room id")
	ErrServer       = errors.New("signaling server error")
	ErrDisconnected = errors.New("disconnected from signaling server")
)

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client interface{ Incoming() <-chan *Message }

	RoomCreated chan string
	RoomJoined  chan string
	// PeerJoined carries the connection id of the joiner.
	PeerJoined chan string
	RoomClosed chan struct{}
	// Signal carries offer, answer and ice-candidate messages.
	Signal chan *Message
	Error  chan error

	// Done is closed once the server connection is gone.
	Done chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHandler creates a new message handler.
func NewHandler(client interface{ Incoming() <-chan *Message }) *Handler {
	return &Handler{
		client:      client,
		RoomCreated: make(chan string, 1),
		RoomJoined:  make(chan string, 1),
		PeerJoined:  make(chan string, 1),
		RoomClosed:  make(chan struct{}, 1),
		Signal:      make(chan *Message, 64),
		Error:       make(chan error, 4),
		Done:        make(chan struct{}),
		stop:        make(chan struct{}),
	}
}

// Start routes messages until the client's incoming channel closes or Close
// is called.
func (h *Handler) Start() {
	defer close(h.Done)

	for {
		var msg *Message
		var ok bool
		select {
		case msg, ok = <-h.client.Incoming():
			if !ok {
				return
			}
		case <-h.stop:
			return
		}

		switch msg.Type {
		case TypeRoomCreated:
			deliver(h, h.RoomCreated, msg.RoomID)

		case TypeRoomJoined:
			deliver(h, h.RoomJoined, msg.RoomID)

		case TypePeerJoined:
			deliver(h, h.PeerJoined, msg.From)

		case TypeRoomClosed:
			deliver(h, h.RoomClosed, struct{}{})

		case TypeOffer, TypeAnswer, TypeICECandidate:
			deliver(h, h.Signal, msg)

		case TypeRoomNotFound:
			deliver(h, h.Error, fmt.Errorf("%w: %s", ErrRoomNotFound, msg.RoomID))

		case TypeRoomFull:
			deliver(h, h.Error, fmt.Errorf("%w: %s", ErrRoomFull, msg.RoomID))

		case TypeRoomInvalid:
			deliver(h, h.Error, ErrRoomInvalid)

		case TypeError:
			deliver(h, h.Error, serverError(msg))
		}
	}
}

func serverError(msg *Message) error {
	var payload ErrorPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.Error == "" {
		return ErrServer
	}
	return fmt.Errorf("%w: %s", ErrServer, payload.Error)
}

func deliver[T any](h *Handler, ch chan T, v T) {
	select {
	case ch <- v:
	case <-h.stop:
	}
}

// Close stops routing. Channels are left open so late readers never see a
// zero value.
func (h *Handler) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
}
