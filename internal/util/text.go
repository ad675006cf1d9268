package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSHA256 returns the hex-encoded SHA-256 of the input text. Used for
// content-addressing documents and for embedding cache keys.
func HashSHA256(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Truncate cuts s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
