// Package clock provides the one-shot timer collaborator hearth entities schedule delayed
// callbacks with. The production Scheduler is a thin veneer over time.AfterFunc; Manual is a
// deterministic scheduler for tests that advances virtual time on demand.
package clock

import (
	"slices"
	"sync"
	"time"
)

// CancelFunc cancels a scheduled call. It reports whether the call was stopped before it
// fired. Calling it more than once is safe.
type CancelFunc func() bool

// Scheduler schedules one-shot callbacks. Callbacks run on an unspecified goroutine and must
// not block.
type Scheduler interface {
	// CallLater arranges for fn to be called once after the provided delay, unless the
	// returned CancelFunc stops it first.
	CallLater(d time.Duration, fn func()) CancelFunc
}

type timerScheduler struct{}

func (timerScheduler) CallLater(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// New returns a Scheduler backed by the runtime timer (time.AfterFunc).
func New() Scheduler {
	return timerScheduler{}
}

type manualCall struct {
	due      time.Duration
	fn       func()
	canceled bool
}

// Manual is a Scheduler for tests. Scheduled calls fire only when Advance moves virtual time
// past their deadline, on the goroutine calling Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*manualCall
}

// NewManual returns a Manual scheduler with virtual time at zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) CallLater(d time.Duration, fn func()) CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := &manualCall{due: m.now + d, fn: fn}
	m.pending = append(m.pending, call)

	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()

		if call.canceled {
			return false
		}

		call.canceled = true
		return slices.Contains(m.pending, call)
	}
}

// Advance moves virtual time forward by d and fires every pending call whose deadline has
// passed, in deadline order. Calls scheduled by a firing callback are considered too.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d

	for {
		next := m.nextDueLocked()
		if next == nil {
			break
		}

		fire := !next.canceled
		m.mu.Unlock()
		if fire {
			next.fn()
		}
		m.mu.Lock()
	}

	m.mu.Unlock()
}

// Pending returns the number of scheduled calls that have neither fired nor been canceled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, call := range m.pending {
		if !call.canceled {
			n++
		}
	}

	return n
}

// nextDueLocked removes and returns the earliest pending call due at or before the current
// virtual time, or nil if none is due.
func (m *Manual) nextDueLocked() *manualCall {
	best := -1
	for i, call := range m.pending {
		if call.due > m.now {
			continue
		}

		if best == -1 || call.due < m.pending[best].due {
			best = i
		}
	}

	if best == -1 {
		return nil
	}

	call := m.pending[best]
	m.pending = slices.Delete(m.pending, best, best+1)
	return call
}
