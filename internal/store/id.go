package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// taskIDBytes yields 8 hex characters: 32 bits of randomness. Collisions are
// possible at scale, so inserts check for an existing row and regenerate.
const taskIDBytes = 4

// generateTaskID creates an opaque 8-hex-character task identifier.
func generateTaskID() (string, error) {
	var b [taskIDBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate task id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
