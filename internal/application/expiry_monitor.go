package application

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

const (
	DefaultExpiryThreshold = 20 * time.Second
	DefaultExpiryInterval  = time.Second
)

type MonitorState uint8

const (
	MonitorIdle MonitorState = iota
	MonitorActive
)

func (s MonitorState) String() string {
	switch s {
	case MonitorIdle:
		return "idle"
	case MonitorActive:
		return "active"
	default:
		return "unknown"
	}
}

type ExpiryMonitorConfig struct {
	Threshold time.Duration
	Interval  time.Duration
}

// ExpiryMonitor periodically scans the session registry and submits a lock
// for every controller whose session outlived the threshold. Lock requests
// are fire-and-forget; a failed submission is logged and the session is
// dropped anyway.
type ExpiryMonitor struct {
	registry  *SessionRegistry
	submitter LockSubmitter
	clock     ports.Clock
	logger    *slog.Logger
	threshold time.Duration
	interval  time.Duration

	mu    sync.RWMutex
	state MonitorState
}

func NewExpiryMonitor(registry *SessionRegistry, submitter LockSubmitter, clock ports.Clock, cfg ExpiryMonitorConfig, logger *slog.Logger) *ExpiryMonitor {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultExpiryThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultExpiryInterval
	}

	return &ExpiryMonitor{
		registry:  registry,
		submitter: submitter,
		clock:     clock,
		logger:    logger,
		threshold: cfg.Threshold,
		interval:  cfg.Interval,
	}
}

func (m *ExpiryMonitor) State() MonitorState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *ExpiryMonitor) Threshold() time.Duration {
	return m.threshold
}

// Run ticks until ctx is cancelled.
func (m *ExpiryMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one scan and returns the controllers whose sessions expired.
func (m *ExpiryMonitor) Tick(ctx context.Context) []domain.ControllerID {
	if m.registry.IsEmpty() {
		m.setState(ctx, MonitorIdle)
		return nil
	}
	m.setState(ctx, MonitorActive)

	now := m.clock.Now()
	var expired []domain.ControllerID
	for _, session := range m.registry.Snapshot() {
		if !session.IsExpired(now, m.threshold) {
			continue
		}

		expired = append(expired, session.ControllerID)
		if err := m.submitter.Submit(session.ControllerID); err != nil {
			m.logger.WarnContext(ctx, "submit lock request",
				"controller", session.ControllerID,
				"age", session.Age(now),
				"error", err,
			)
			continue
		}

		m.logger.InfoContext(ctx, "controller session expired",
			"controller", session.ControllerID,
			"age", session.Age(now),
		)
	}

	m.registry.RemoveAll(expired)
	if m.registry.IsEmpty() {
		m.setState(ctx, MonitorIdle)
	}

	return expired
}

func (m *ExpiryMonitor) setState(ctx context.Context, state MonitorState) {
	m.mu.Lock()
	previous := m.state
	m.state = state
	m.mu.Unlock()

	if previous != state {
		m.logger.DebugContext(ctx, "expiry monitor state changed", "from", previous, "to", state)
	}
}
