package timewarp

import (
	"context"
	"sync"
)

// Signal is a raisable flag that goroutines can wait on.
//
// An auto-reset signal lowers itself when a waiter wakes on it, so each
// Raise releases one Wait. A manual-reset signal stays raised until Clear.
// ForceRaise raises the signal permanently; Clear and auto-reset no longer
// lower it. Exchange uses that to release blocked producers on shutdown.
//
// Thread safety: Signal is safe for concurrent use.
type Signal struct {
	mu        sync.Mutex
	cond      *sync.Cond
	autoReset bool
	raised    bool
	forced    bool
	gen       uint64 // bumped by every raise
	waiters   int
}

// NewSignal creates a lowered signal.
func NewSignal(autoReset bool) *Signal {
	s := &Signal{autoReset: autoReset}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Raise sets the signal and wakes waiters.
func (s *Signal) Raise() {
	s.mu.Lock()
	s.raised = true
	s.gen++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Clear lowers the signal unless it was force-raised.
func (s *Signal) Clear() {
	s.mu.Lock()
	s.raised = false
	s.mu.Unlock()
}

// ForceRaise raises the signal permanently and wakes every waiter.
func (s *Signal) ForceRaise() {
	s.mu.Lock()
	s.forced = true
	s.raised = true
	s.gen++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// waiting returns the number of goroutines blocked in Wait.
func (s *Signal) waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters
}

// IsRaised reports the current state without waiting.
func (s *Signal) IsRaised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised || s.forced
}

// Wait blocks until the signal is raised or ctx is done. An auto-reset
// signal is lowered again before Wait returns nil. A manual-reset waiter
// also returns for a raise that was cleared before it woke.
func (s *Signal) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.gen
	for !s.raised && !s.forced {
		if !s.autoReset && s.gen != start {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.waiters++
		s.cond.Wait()
		s.waiters--
	}
	if s.autoReset && !s.forced {
		s.raised = false
	}
	return nil
}
