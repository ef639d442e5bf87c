package domain

import (
	"encoding/hex"
	"strings"
)

// DecodeTokenKey turns a cloud token into HMAC key bytes. Tokens made only of
// hex digits (with an even length) are decoded; anything else is used raw.
func DecodeTokenKey(token string) []byte {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil
	}

	if isHex(trimmed) {
		if key, err := hex.DecodeString(trimmed); err == nil {
			return key
		}
	}

	return []byte(trimmed)
}

func isHex(s string) bool {
	for _, r := range strings.ToLower(s) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}

	return true
}
