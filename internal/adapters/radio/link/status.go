package link

import (
	"time"

	"github.com/bnema/lockpad/internal/application"
	"github.com/bnema/lockpad/internal/domain"
)

type statusPayload struct {
	DeviceID         string           `json:"device_id"`
	DeviceLabel      string           `json:"device_label"`
	Unlocked         bool             `json:"unlocked"`
	Monitor          string           `json:"monitor"`
	ThresholdSeconds float64          `json:"threshold_seconds"`
	KeyConfigured    bool             `json:"key_configured"`
	Sessions         []sessionPayload `json:"sessions"`
	CapturedAt       time.Time        `json:"captured_at"`
}

type sessionPayload struct {
	ControllerID     string    `json:"controller_id"`
	FirstSeen        time.Time `json:"first_seen"`
	RemainingSeconds float64   `json:"remaining_seconds"`
}

func toStatusPayload(status application.Status) statusPayload {
	sessions := make([]sessionPayload, 0, len(status.Sessions))
	for _, session := range status.Sessions {
		sessions = append(sessions, sessionPayload{
			ControllerID:     string(session.ControllerID),
			FirstSeen:        session.FirstSeen,
			RemainingSeconds: session.Remaining.Seconds(),
		})
	}

	return statusPayload{
		DeviceID:         string(status.DeviceID),
		DeviceLabel:      status.DeviceLabel,
		Unlocked:         status.Unlocked,
		Monitor:          status.Monitor.String(),
		ThresholdSeconds: status.Threshold.Seconds(),
		KeyConfigured:    status.KeyConfigured,
		Sessions:         sessions,
		CapturedAt:       status.CapturedAt,
	}
}

func fromStatusPayload(payload statusPayload) application.Status {
	sessions := make([]application.SessionStatus, 0, len(payload.Sessions))
	for _, session := range payload.Sessions {
		sessions = append(sessions, application.SessionStatus{
			ControllerID: domain.ControllerID(session.ControllerID),
			FirstSeen:    session.FirstSeen,
			Remaining:    seconds(session.RemainingSeconds),
		})
	}

	monitor := application.MonitorIdle
	if payload.Monitor == application.MonitorActive.String() {
		monitor = application.MonitorActive
	}

	return application.Status{
		DeviceID:      domain.DeviceID(payload.DeviceID),
		DeviceLabel:   payload.DeviceLabel,
		Unlocked:      payload.Unlocked,
		Monitor:       monitor,
		Threshold:     seconds(payload.ThresholdSeconds),
		KeyConfigured: payload.KeyConfigured,
		Sessions:      sessions,
		CapturedAt:    payload.CapturedAt,
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
