package lockmgr

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	byteLength = 32
)

// generateOwnerID creates a new unique owner ID
// The owner ID is the hex encoding of 256 random bits.
func generateOwnerID() (string, error) {
	randomBytes := make([]byte, byteLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}
