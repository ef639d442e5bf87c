package application

import (
	"time"

	"github.com/bnema/lockpad/internal/domain"
	"github.com/bnema/lockpad/internal/ports"
)

type SessionStatus struct {
	ControllerID domain.ControllerID
	FirstSeen    time.Time
	Remaining    time.Duration
}

// Status is a point-in-time view of the running peripheral.
type Status struct {
	DeviceID      domain.DeviceID
	DeviceLabel   string
	Unlocked      bool
	Monitor       MonitorState
	Threshold     time.Duration
	KeyConfigured bool
	Sessions      []SessionStatus
	CapturedAt    time.Time
}

type StatusQuery struct {
	device   domain.Device
	registry *SessionRegistry
	monitor  *ExpiryMonitor
	endpoint *Endpoint
	clock    ports.Clock
}

func NewStatusQuery(device domain.Device, registry *SessionRegistry, monitor *ExpiryMonitor, endpoint *Endpoint, clock ports.Clock) *StatusQuery {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &StatusQuery{
		device:   device,
		registry: registry,
		monitor:  monitor,
		endpoint: endpoint,
		clock:    clock,
	}
}

func (q *StatusQuery) Status() Status {
	now := q.clock.Now()
	threshold := q.monitor.Threshold()

	snapshot := q.registry.Snapshot()
	sessions := make([]SessionStatus, 0, len(snapshot))
	for _, session := range snapshot {
		sessions = append(sessions, SessionStatus{
			ControllerID: session.ControllerID,
			FirstSeen:    session.FirstSeen,
			Remaining:    session.Remaining(now, threshold),
		})
	}

	return Status{
		DeviceID:      q.device.ID,
		DeviceLabel:   q.device.Label,
		Unlocked:      q.registry.Unlocked(),
		Monitor:       q.monitor.State(),
		Threshold:     threshold,
		KeyConfigured: q.endpoint.KeyConfigured(),
		Sessions:      sessions,
		CapturedAt:    now,
	}
}
