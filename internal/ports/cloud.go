package ports

import (
	"context"

	"github.com/bnema/lockpad/internal/domain"
)

// TokenClient obtains the device token whose bytes key the challenge HMAC.
type TokenClient interface {
	RequestToken(ctx context.Context, req domain.TokenRequest) (string, error)
}

// LockNotifier tells the cloud that a controller session expired and the
// machine must be locked.
type LockNotifier interface {
	Lock(ctx context.Context, req domain.LockRequest) error
}
