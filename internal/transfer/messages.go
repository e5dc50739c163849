package transfer

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Message is the envelope of every data-channel frame.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

type FileInfo struct {
	Name        string `msgpack:"name"`
	Size        int64  `msgpack:"size"`
	MimeType    string `msgpack:"mimeType"`
	TotalChunks int    `msgpack:"totalChunks"`
	Checksum    []byte `msgpack:"checksum"`
}

type FileChunk struct {
	Index int    `msgpack:"index"`
	Bytes []byte `msgpack:"bytes"`
}

// FileRejection tells the sender the receiver dropped the transfer.
type FileRejection struct {
	Reason string `msgpack:"reason"`
}

func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// Encode frames a message, marshalling payload when it is not nil.
func Encode(msgType string, payload any) ([]byte, error) {
	msg := Message{Type: msgType}
	if payload != nil {
		b, err := msgpack.Marshal(payload)
		if err != nil {
			return nil, NewError("marshal payload", err)
		}
		msg.Payload = b
	}

	data, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, NewError("marshal message", err)
	}
	return data, nil
}

func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return nil, NewError("parse message", err)
	}
	return &msg, nil
}
