package cloud

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerOpenTimeout time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe is let through.
	OpenTimeout time.Duration
	// Interval clears failure counts while the circuit is closed.
	Interval time.Duration
}

// BreakerLockNotifier fails fast while the cloud keeps rejecting lock
// requests, so a backlog of expired sessions does not pile up timeouts.
type BreakerLockNotifier struct {
	inner   ports.LockNotifier
	breaker *gobreaker.CircuitBreaker[struct{}]
}

var _ ports.LockNotifier = (*BreakerLockNotifier)(nil)

func NewBreakerLockNotifier(inner ports.LockNotifier, cfg BreakerConfig, logger *slog.Logger) *BreakerLockNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = defaultBreakerOpenTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "cloud:lock",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &BreakerLockNotifier{inner: inner, breaker: cb}
}

func (n *BreakerLockNotifier) Lock(ctx context.Context, req domain.LockRequest) error {
	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.inner.Lock(ctx, req)
	})
	if err != nil {
		return fmt.Errorf("notify lock: %w", err)
	}

	return nil
}

func (n *BreakerLockNotifier) State() gobreaker.State {
	return n.breaker.State()
}
