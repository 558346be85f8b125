package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// RandomHex returns n lowercase hex characters read from crypto/rand.
// Authorization request ids come from here, so n must be large enough to
// be unguessable.
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("random hex length must be positive, got %d", n)
	}
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf)[:n], nil
}
