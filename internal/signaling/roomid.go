package signaling

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	// MaxRoomIDLength bounds a room code after normalisation.
	MaxRoomIDLength = 20

	// GeneratedRoomIDLength is the length of codes produced by GenerateRoomID.
	GeneratedRoomIDLength = 7

	roomAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var ErrInvalidRoomID = errors.New("room id must be 1-20 letters or digits")

// NormalizeRoomID trims and upper-cases a room code and checks it is 1 to 20
// ASCII letters or digits. Room codes are case-insensitive.
func NormalizeRoomID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if id == "" || len(id) > MaxRoomIDLength {
		return "", ErrInvalidRoomID
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(roomAlphabet, id[i]) < 0 {
			return "", ErrInvalidRoomID
		}
	}
	return id, nil
}

// ParseRoomInput is NormalizeRoomID for codes typed by a user: overlong input
// is cut to MaxRoomIDLength instead of rejected.
func ParseRoomInput(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if len(id) > MaxRoomIDLength {
		id = id[:MaxRoomIDLength]
	}
	return NormalizeRoomID(id)
}

// GenerateRoomID returns a random upper-case base-36 room code.
func GenerateRoomID() string {
	var b strings.Builder
	b.Grow(GeneratedRoomIDLength)

	max := big.NewInt(int64(len(roomAlphabet)))
	for i := 0; i < GeneratedRoomIDLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		b.WriteByte(roomAlphabet[n.Int64()])
	}
	return b.String()
}
