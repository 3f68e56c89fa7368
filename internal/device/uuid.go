package device

import (
	"encoding/hex"
	"strings"
)

// sigBaseSuffix is the Bluetooth SIG base UUID tail (xxxxxxxx-0000-1000-8000-00805f9b34fb) without dashes
const sigBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal form (lowercase, no dashes).
// Strips a 0x prefix and shortens SIG base UUIDs to their 16-bit form.
// Returns "" if the input is not a 16, 32 or 128-bit hex UUID.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")

	switch len(u) {
	case 4, 8, 32:
	default:
		return ""
	}
	if _, err := hex.DecodeString(u); err != nil {
		return ""
	}

	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, sigBaseSuffix) {
		return u[4:8]
	}
	return u
}

// SameUUID reports whether two UUID strings denote the same UUID
func SameUUID(a, b string) bool {
	na, nb := NormalizeUUID(a), NormalizeUUID(b)
	return na != "" && na == nb
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}
