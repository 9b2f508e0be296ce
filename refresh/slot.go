package refresh

import (
	"sync"
	"time"
)

// Slot runs at most one task at a time. A task can only be started when the
// previous one has returned.
type Slot struct {
	mu   sync.Mutex
	done chan struct{}
}

// TryStart runs task on a new goroutine if the slot is free and reports
// whether it did.
func (s *Slot) TryStart(task func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if isRunning(s.done) {
		return false
	}

	done := make(chan struct{})
	s.done = done
	go func() {
		defer close(done)
		task()
	}()

	return true
}

func (s *Slot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return isRunning(s.done)
}

// Wait blocks until the slot is free or the timeout passes. It returns true
// if the slot is free.
func (s *Slot) Wait(timeout time.Duration) bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if !isRunning(done) {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func isRunning(done chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
