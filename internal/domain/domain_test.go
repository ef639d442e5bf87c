package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionExpiryUsesStrictThreshold(t *testing.T) {
	firstSeen := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	s := Session{ControllerID: "CTRL001", FirstSeen: firstSeen}

	assert.False(t, s.IsExpired(firstSeen.Add(20*time.Second), 20*time.Second))
	assert.True(t, s.IsExpired(firstSeen.Add(21*time.Second), 20*time.Second))
	assert.Equal(t, 5*time.Second, s.Remaining(firstSeen.Add(15*time.Second), 20*time.Second))
	assert.Equal(t, time.Duration(0), s.Remaining(firstSeen.Add(time.Minute), 20*time.Second))
}

func TestDeviceValidate(t *testing.T) {
	tests := []struct {
		name    string
		device  Device
		wantErr string
	}{
		{name: "valid", device: Device{ID: "bd45e75870af93c2", Label: "Xiaomi", SecretHash: "cc03"}},
		{name: "missing id", device: Device{Label: "Xiaomi", SecretHash: "cc03"}, wantErr: "id is required"},
		{name: "blank label", device: Device{ID: "dev", Label: "  ", SecretHash: "cc03"}, wantErr: "label is required"},
		{name: "missing secret", device: Device{ID: "dev", Label: "Xiaomi"}, wantErr: "secret hash is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.device.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDeviceTokenSecretKey(t *testing.T) {
	assert.Equal(t, "lockpad/bd45e75870af93c2/token", Device{ID: "bd45e75870af93c2"}.TokenSecretKey())
}

func TestDecodeTokenKey(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  []byte
	}{
		{name: "hex token", token: "a0ff10", want: []byte{0xa0, 0xff, 0x10}},
		{name: "upper hex token", token: "A0FF", want: []byte{0xa0, 0xff}},
		{name: "raw token", token: "this_is_test_key", want: []byte("this_is_test_key")},
		{name: "odd length hex stays raw", token: "abc", want: []byte("abc")},
		{name: "surrounding whitespace", token: " 0a0b\n", want: []byte{0x0a, 0x0b}},
		{name: "empty", token: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeTokenKey(tt.token))
		})
	}
}

func TestCharacteristicFlagsString(t *testing.T) {
	assert.Equal(t, "read", FlagRead.String())
	assert.Equal(t, "write", FlagWrite.String())
	assert.Equal(t, "read,write", (FlagRead | FlagWrite).String())
	assert.Equal(t, "", CharacteristicFlags(0).String())
}

func TestAdvertisementTXT(t *testing.T) {
	adv := Advertisement{
		LocalName:        "Xiaomi",
		CompanyID:        0xFFFF,
		ManufacturerData: []byte{0x03, 0x8F},
		ServiceUUID:      ServiceUUID,
	}

	assert.Equal(t, []string{
		"name=Xiaomi",
		"company=0xFFFF",
		"mfr=038f",
		"svc=0000aaa0-0000-1000-8000-aabbccddeeff",
	}, adv.TXT())
}
