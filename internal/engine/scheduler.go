package engine

import (
	"sync"
	"time"
)

// Named timers owned by the engine.
const (
	timerDisplay = "display"
	timerHide    = "hide"
	timerPoll    = "poll"
)

type timerSlot struct {
	t   Timer
	gen uint64
}

// scheduler owns the engine's named timers. Setting a name replaces any
// pending timer of that name, and a callback whose timer was replaced or
// stopped after it fired is discarded when it reaches the loop.
type scheduler struct {
	mu     sync.Mutex
	clock  Clock
	post   func(func()) bool
	slots  map[string]timerSlot
	gen    uint64
	closed bool
}

func newScheduler(clock Clock, post func(func()) bool) *scheduler {
	return &scheduler{clock: clock, post: post, slots: map[string]timerSlot{}}
}

// Set arms name to run fn on the loop after d.
func (s *scheduler) Set(name string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.slots[name]; ok {
		old.t.Stop()
	}
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(d, func() {
		s.post(func() {
			if s.claim(name, gen) {
				fn()
			}
		})
	})
	s.slots[name] = timerSlot{t: t, gen: gen}
}

func (s *scheduler) claim(name string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[name]
	if s.closed || !ok || slot.gen != gen {
		return false
	}
	delete(s.slots, name)
	return true
}

// Stop cancels name if it is armed.
func (s *scheduler) Stop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.slots[name]; ok {
		slot.t.Stop()
		delete(s.slots, name)
	}
}

// Close cancels every timer and refuses new ones. It is idempotent.
func (s *scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, slot := range s.slots {
		slot.t.Stop()
		delete(s.slots, name)
	}
	s.closed = true
}

// Armed reports whether name is pending.
func (s *scheduler) Armed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[name]
	return ok
}

// Active returns the number of pending timers.
func (s *scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
