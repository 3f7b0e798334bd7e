package platform

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const shortIDLength = 10

func NewID() string {
	return uuid.New().String()
}

// ParseID normalizes an instance id read from a reference field. Reference
// fields are free text, so anything that is not a UUID is rejected.
func ParseID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse instance id %q: %w", raw, err)
	}
	return id.String(), nil
}

// NewRequestKey returns a short random key with the given prefix, used for
// correlation ids that end up in human-facing logs.
func NewRequestKey(prefix string) string {
	b := make([]byte, shortIDLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = shortIDAlphabet[b[i]%byte(len(shortIDAlphabet))]
	}
	return prefix + string(b)
}
