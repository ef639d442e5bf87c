package application

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/lockpad/internal/domain"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSubmitter struct {
	mu        sync.Mutex
	submitted []domain.ControllerID
	err       error
}

func (s *recordingSubmitter) Submit(id domain.ControllerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, id)
	return s.err
}

func (s *recordingSubmitter) Submitted() []domain.ControllerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ControllerID(nil), s.submitted...)
}
