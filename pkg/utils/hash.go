package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashParts joins parts with a separator that cannot appear in normalized text
// and returns the hex SHA-256.
func HashParts(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
