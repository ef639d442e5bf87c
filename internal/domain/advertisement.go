package domain

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

type Advertisement struct {
	LocalName        string
	CompanyID        uint16
	ManufacturerData []byte
	ServiceUUID      uuid.UUID
	Port             int
}

// TXT renders the advertisement as DNS-SD TXT records.
func (a Advertisement) TXT() []string {
	return []string{
		"name=" + a.LocalName,
		fmt.Sprintf("company=0x%04X", a.CompanyID),
		"mfr=" + hex.EncodeToString(a.ManufacturerData),
		"svc=" + a.ServiceUUID.String(),
	}
}
