package protocol

import (
	"crypto/rand"
	"strings"
)

const (
	RoomCodeLen      = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NormalizeRoomCode trims and uppercases a user-typed code.
func NormalizeRoomCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// ValidRoomCode reports whether code is exactly six characters of [A-Z0-9].
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLen {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(roomCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// GenerateRoomCode returns a random valid room code.
func GenerateRoomCode() (string, error) {
	b := make([]byte, RoomCodeLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = roomCodeAlphabet[int(b[i])%len(roomCodeAlphabet)]
	}
	return string(b), nil
}
