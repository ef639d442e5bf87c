package domain

import "time"

// Session tracks a controller that completed a challenge. FirstSeen is set on
// first contact and is not refreshed by later challenges.
type Session struct {
	ControllerID ControllerID
	FirstSeen    time.Time
}

func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.FirstSeen)
}

func (s Session) IsExpired(now time.Time, threshold time.Duration) bool {
	return s.Age(now) > threshold
}

// Remaining returns how long the session stays valid, never negative.
func (s Session) Remaining(now time.Time, threshold time.Duration) time.Duration {
	left := threshold - s.Age(now)
	if left < 0 {
		return 0
	}

	return left
}
