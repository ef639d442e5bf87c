package domain

import (
	"fmt"
	"strings"
)

// Wire layout of the current protocol revision.
const (
	ChallengeLength    = 16
	ControllerIDLength = 7
	MessageLength      = ChallengeLength + ControllerIDLength
	ResponseLength     = 32
)

type ControllerID string

type ChallengeMessage struct {
	Challenge    []byte
	ControllerID ControllerID
}

// SplitMessage cuts a complete challenge write into its challenge and
// controller id. Trailing NUL and space padding is stripped from the id.
func SplitMessage(message []byte) (ChallengeMessage, error) {
	if len(message) < MessageLength {
		return ChallengeMessage{}, fmt.Errorf("challenge message too short: %d bytes, want %d", len(message), MessageLength)
	}

	challenge := make([]byte, ChallengeLength)
	copy(challenge, message[:ChallengeLength])

	rawID := string(message[ChallengeLength:MessageLength])
	id := strings.TrimRight(rawID, "\x00 ")

	return ChallengeMessage{
		Challenge:    challenge,
		ControllerID: ControllerID(id),
	}, nil
}

// EncodeMessage is the controller-side inverse of SplitMessage.
func EncodeMessage(challenge []byte, id ControllerID) ([]byte, error) {
	if len(challenge) != ChallengeLength {
		return nil, fmt.Errorf("challenge must be %d bytes, got %d", ChallengeLength, len(challenge))
	}
	if len(id) == 0 || len(id) > ControllerIDLength {
		return nil, fmt.Errorf("controller id must be 1-%d bytes, got %d", ControllerIDLength, len(id))
	}

	message := make([]byte, MessageLength)
	copy(message, challenge)
	copy(message[ChallengeLength:], id)

	return message, nil
}
