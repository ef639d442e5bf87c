package domain

import (
	"fmt"
	"strings"
)

type DeviceID string

type Device struct {
	ID         DeviceID
	Label      string
	SecretHash string
	// Identity is sent along token requests when the cloud expects an owner
	// account in addition to the device credentials.
	Identity string
}

func (d Device) Validate() error {
	if strings.TrimSpace(string(d.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(d.Label) == "" {
		return fmt.Errorf("label is required")
	}
	if strings.TrimSpace(d.SecretHash) == "" {
		return fmt.Errorf("secret hash is required")
	}

	return nil
}

// TokenSecretKey is the secret-store key under which the device token is cached.
func (d Device) TokenSecretKey() string {
	return fmt.Sprintf("lockpad/%s/token", d.ID)
}
