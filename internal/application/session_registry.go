package application

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bnema/lockpad/internal/domain"
)

// SessionRegistry maps controller ids to the time of their first valid
// challenge. It is shared by the endpoint and the expiry monitor; every
// mutation and snapshot holds the same lock, and the derived unlocked flag is
// recomputed under it.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.ControllerID]time.Time
	unlocked bool

	onUnlockChange func(unlocked bool)
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: map[domain.ControllerID]time.Time{}}
}

// OnUnlockChange registers fn to be called, outside the lock, whenever the
// registry goes from empty to non-empty or back.
func (r *SessionRegistry) OnUnlockChange(fn func(unlocked bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUnlockChange = fn
}

// RecordFirstSeen inserts id with now unless it is already present. It
// reports whether a new session was created.
func (r *SessionRegistry) RecordFirstSeen(id domain.ControllerID, now time.Time) bool {
	r.mu.Lock()
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return false
	}

	r.sessions[id] = now
	changed, notify := r.recomputeLocked()
	r.mu.Unlock()

	if changed && notify != nil {
		notify(true)
	}

	return true
}

// Snapshot returns a point-in-time copy ordered by first-seen time, then id.
func (r *SessionRegistry) Snapshot() []domain.Session {
	r.mu.RLock()
	sessions := make([]domain.Session, 0, len(r.sessions))
	for id, firstSeen := range r.sessions {
		sessions = append(sessions, domain.Session{ControllerID: id, FirstSeen: firstSeen})
	}
	r.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b domain.Session) int {
		if c := a.FirstSeen.Compare(b.FirstSeen); c != 0 {
			return c
		}
		return strings.Compare(string(a.ControllerID), string(b.ControllerID))
	})

	return sessions
}

// RemoveAll deletes every listed id that is present, in one critical section.
func (r *SessionRegistry) RemoveAll(ids []domain.ControllerID) {
	if len(ids) == 0 {
		return
	}

	r.mu.Lock()
	for _, id := range ids {
		delete(r.sessions, id)
	}
	changed, notify := r.recomputeLocked()
	r.mu.Unlock()

	if changed && notify != nil {
		notify(false)
	}
}

func (r *SessionRegistry) IsEmpty() bool {
	return r.Len() == 0
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Unlocked reports whether at least one controller holds a live session.
func (r *SessionRegistry) Unlocked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unlocked
}

func (r *SessionRegistry) recomputeLocked() (bool, func(bool)) {
	unlocked := len(r.sessions) > 0
	changed := unlocked != r.unlocked
	r.unlocked = unlocked
	return changed, r.onUnlockChange
}
