package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessage(t *testing.T) {
	challenge := bytes.Repeat([]byte{0xAB}, ChallengeLength)
	message := append(append([]byte{}, challenge...), []byte("CTRL001")...)

	got, err := SplitMessage(message)
	require.NoError(t, err)
	assert.Equal(t, challenge, got.Challenge)
	assert.Equal(t, ControllerID("CTRL001"), got.ControllerID)
}

func TestSplitMessageStripsPadding(t *testing.T) {
	message := make([]byte, MessageLength)
	copy(message[ChallengeLength:], "RC1")

	got, err := SplitMessage(message)
	require.NoError(t, err)
	assert.Equal(t, ControllerID("RC1"), got.ControllerID)
}

func TestSplitMessageRejectsShortInput(t *testing.T) {
	_, err := SplitMessage(make([]byte, MessageLength-1))
	assert.ErrorContains(t, err, "too short")
}

func TestEncodeMessageRoundTrip(t *testing.T) {
	challenge := bytes.Repeat([]byte{0x01}, ChallengeLength)

	message, err := EncodeMessage(challenge, "CTRL001")
	require.NoError(t, err)
	require.Len(t, message, MessageLength)

	got, err := SplitMessage(message)
	require.NoError(t, err)
	assert.Equal(t, ControllerID("CTRL001"), got.ControllerID)
	assert.Equal(t, challenge, got.Challenge)
}

func TestEncodeMessageValidatesInput(t *testing.T) {
	_, err := EncodeMessage(make([]byte, 8), "CTRL001")
	assert.ErrorContains(t, err, "challenge must be 16 bytes")

	_, err = EncodeMessage(make([]byte, ChallengeLength), "CTRL0001")
	assert.ErrorContains(t, err, "controller id must be 1-7 bytes")

	_, err = EncodeMessage(make([]byte, ChallengeLength), "")
	assert.ErrorContains(t, err, "controller id must be 1-7 bytes")
}
