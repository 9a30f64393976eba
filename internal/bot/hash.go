package bot

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash identifies an opportunity by what it says, not where it was
// found, so the same posting surfaced on two pages deduplicates.
func ContentHash(title, sourceName, description string) string {
	h := sha256.Sum256([]byte(title + sourceName + description))
	return hex.EncodeToString(h[:])
}
