package ports

import (
	"context"

	"github.com/bnema/lockpad/internal/domain"
)

// Advertiser announces the peripheral until ctx is cancelled.
type Advertiser interface {
	Advertise(ctx context.Context, adv domain.Advertisement) error
}
