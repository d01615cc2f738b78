// internal/game/roomcode.go
package game

import (
	"crypto/rand"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLength   = 6
)

// NewRoomCode returns a short, human-typeable room identifier. Uniqueness
// against live rooms is the caller's job; the code space (36^6) makes
// retries rare.
func NewRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails if the OS entropy source is broken;
		// nothing sensible to do but panic like uuid.New does.
		panic(err)
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
