package traceroute

import (
	"crypto/sha1"
	"encoding/hex"
)

// sha1Hex mirrors the original project's record_uid(): a 40-hex-char token
// derived from a random uuid4, used as both Traceroute and Host primary
// keys so IDs are opaque and cannot be enumerated.
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
