package domain

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceHMAC(key, challenge []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(challenge)
	return mac.Sum(nil)
}

func TestComputeResponseMatchesReferenceHMAC(t *testing.T) {
	t.Parallel()

	challenge := bytes.Repeat([]byte{0x5A}, ChallengeLength)
	keys := [][]byte{
		[]byte("k"),
		[]byte("this_is_test_key_32bytes____"),
		bytes.Repeat([]byte{0x01}, 128),
	}

	for _, key := range keys {
		got, keyed := ComputeResponse(challenge, key)
		require.True(t, keyed)
		assert.Len(t, got, ResponseLength)
		assert.Equal(t, referenceHMAC(key, challenge), got)
	}
}

func TestComputeResponseIsDeterministic(t *testing.T) {
	t.Parallel()

	challenge := []byte("0123456789abcdef")
	first, _ := ComputeResponse(challenge, []byte("key"))
	second, _ := ComputeResponse(challenge, []byte("key"))
	assert.Equal(t, first, second)
}

func TestComputeResponseFallsBackToSentinelWithoutKey(t *testing.T) {
	t.Parallel()

	got, keyed := ComputeResponse([]byte("0123456789abcdef"), nil)
	assert.False(t, keyed)
	assert.Equal(t, SentinelResponse, got)

	got[0] = 0x00
	assert.Equal(t, byte(0xDE), SentinelResponse[0])
}

func TestVerifyResponse(t *testing.T) {
	t.Parallel()

	challenge := []byte("0123456789abcdef")
	response, _ := ComputeResponse(challenge, []byte("k"))

	assert.True(t, VerifyResponse(challenge, []byte("k"), response))
	assert.False(t, VerifyResponse(challenge, []byte("other"), response))
	assert.False(t, VerifyResponse(challenge, nil, SentinelResponse))
}
