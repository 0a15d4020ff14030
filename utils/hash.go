package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint generates a SHA256 hash over the joined parts for use as an
// index key (e.g. the (ip, user-agent, link) duplicate-click marker).
func Fingerprint(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:])
}
