package signaling

import (
	"encoding/json"
	"fmt"
)

// Message is the JSON envelope exchanged between clients and the broker.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to broker.
const (
	TypeCreateRoom = "create-room"
	TypeJoinRoom   = "join-room"
)

// Relayed verbatim between the two members of a room.
const (
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Broker to client.
const (
	TypeRoomCreated  = "room-created"
	TypeRoomJoined   = "room-joined"
	TypePeerJoined   = "peer-joined"
	TypeRoomFull     = "room-full"
	TypeRoomNotFound = "room-not-found"
	TypeRoomClosed   = "room-closed"
	TypeRoomInvalid  = "room-invalid"
	TypeError        = "error"
)

// ErrorPayload represents error messages from the broker.
type ErrorPayload struct {
	Error string `json:"error"`
}

// IsRelayType reports whether t is forwarded to the other room member.
func IsRelayType(t string) bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// NewMessage builds a message, JSON-encoding payload when it is not nil.
func NewMessage(t, roomID string, payload any) (*Message, error) {
	msg := &Message{Type: t, RoomID: roomID}
	if payload == nil {
		return msg, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = b
	return msg, nil
}

// DecodePayload decodes the message payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

// ErrorMessage builds a generic error reply.
func ErrorMessage(text string) *Message {
	b, _ := json.Marshal(ErrorPayload{Error: text})
	return &Message{Type: TypeError, Payload: b}
}
