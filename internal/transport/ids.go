package transport

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// CodeLength is the length of a host session code.
	CodeLength = 6
)

// NewSessionCode returns a random upper-case base-36 code short enough to type by hand.
func NewSessionCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session code: %w", err)
	}
	out := make([]byte, CodeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out), nil
}

// NormalizeCode turns user input into a comparable session code.
func NormalizeCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// NewPeerID returns a fresh identifier for a participant that has no fixed code.
func NewPeerID() string {
	return uuid.NewString()
}
