package domain

import (
	"crypto/hmac"
	"crypto/sha256"
)

// SentinelResponse is served instead of a digest when no key is configured.
var SentinelResponse = []byte{0xDE, 0xAD, 0xBE, 0xEF}

// ComputeResponse returns HMAC-SHA256(key, challenge). With an empty key it
// returns a copy of SentinelResponse and false; callers are expected to log
// that branch.
func ComputeResponse(challenge []byte, key []byte) ([]byte, bool) {
	if len(key) == 0 {
		return append([]byte(nil), SentinelResponse...), false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(challenge)

	return mac.Sum(nil), true
}

// VerifyResponse reports whether response is the expected digest for challenge.
func VerifyResponse(challenge, key, response []byte) bool {
	expected, keyed := ComputeResponse(challenge, key)
	if !keyed {
		return false
	}

	return hmac.Equal(expected, response)
}
