package domain

import (
	"strings"

	"github.com/google/uuid"
)

var (
	ServiceUUID               = uuid.MustParse("0000aaa0-0000-1000-8000-aabbccddeeff")
	ChallengeCharacteristicID = uuid.MustParse("0000aaa2-0000-1000-8000-aabbccddeeff")
	ResponseCharacteristicID  = uuid.MustParse("0000aaa1-0000-1000-8001-aabbccddeeff")
)

type CharacteristicFlags uint8

const (
	FlagRead CharacteristicFlags = 1 << iota
	FlagWrite
)

func (f CharacteristicFlags) Read() bool {
	return f&FlagRead != 0
}

func (f CharacteristicFlags) Write() bool {
	return f&FlagWrite != 0
}

// String renders flags the way GATT registrations list them, e.g. "read,write".
func (f CharacteristicFlags) String() string {
	parts := make([]string, 0, 2)
	if f.Read() {
		parts = append(parts, "read")
	}
	if f.Write() {
		parts = append(parts, "write")
	}

	return strings.Join(parts, ",")
}

type CharacteristicProperties struct {
	UUID    uuid.UUID
	Service uuid.UUID
	Flags   CharacteristicFlags
}

// Describer exposes the registration properties of a characteristic.
type Describer interface {
	Describe() CharacteristicProperties
}
