// Package alarmtest provides a deterministic alarm.Scheduler for tests.
package alarmtest

import (
	"sync"
	"time"

	"github.com/gr-butler/masthead/alarm"
	"github.com/jonboulle/clockwork"
)

// Clock is satisfied by the clockwork fake clock.
type Clock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// Manual fires alarms only from Advance, on the calling goroutine, in
// deadline order. The clock is moved to each deadline before its callback
// runs so callbacks observe the time they were due.
type Manual struct {
	clock   Clock
	lock    sync.Mutex
	seq     uint64
	pending map[uint64]*manualAlarm
	// Limit caps the number of pending alarms, 0 means no limit.
	Limit int
	// Fail is returned by every registration while set.
	Fail error
}

type manualAlarm struct {
	m        *Manual
	id       uint64
	deadline time.Time
	period   time.Duration
	f        func()
}

func New(clock Clock) *Manual {
	return &Manual{
		clock:   clock,
		pending: make(map[uint64]*manualAlarm),
	}
}

func (m *Manual) After(d time.Duration, f func()) (alarm.Handle, error) {
	return m.add(d, 0, f)
}

func (m *Manual) Every(d time.Duration, f func()) (alarm.Handle, error) {
	return m.add(d, d, f)
}

func (m *Manual) add(d, period time.Duration, f func()) (alarm.Handle, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	if d <= 0 {
		return nil, alarm.ErrInvalidDelay
	}
	if m.Limit > 0 && len(m.pending) >= m.Limit {
		return nil, alarm.ErrPoolExhausted
	}
	m.seq++
	a := &manualAlarm{m: m, id: m.seq, deadline: m.clock.Now().Add(d), period: period, f: f}
	m.pending[a.id] = a
	return a, nil
}

// Advance moves the clock forward by d, firing everything that falls due.
func (m *Manual) Advance(d time.Duration) {
	end := m.clock.Now().Add(d)
	for {
		m.lock.Lock()
		var next *manualAlarm
		for _, a := range m.pending {
			if a.deadline.After(end) {
				continue
			}
			if next == nil || a.deadline.Before(next.deadline) ||
				(a.deadline.Equal(next.deadline) && a.id < next.id) {
				next = a
			}
		}
		if next == nil {
			m.lock.Unlock()
			break
		}
		due := next.deadline
		if next.period > 0 {
			next.deadline = next.deadline.Add(next.period)
		} else {
			delete(m.pending, next.id)
		}
		f := next.f
		m.lock.Unlock()

		if wait := due.Sub(m.clock.Now()); wait > 0 {
			m.clock.Advance(wait)
		}
		f()
	}
	if rest := end.Sub(m.clock.Now()); rest > 0 {
		m.clock.Advance(rest)
	}
}

// Pending returns the number of armed alarms.
func (m *Manual) Pending() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.pending)
}

func (a *manualAlarm) Cancel() bool {
	a.m.lock.Lock()
	defer a.m.lock.Unlock()
	if _, ok := a.m.pending[a.id]; !ok {
		return false
	}
	delete(a.m.pending, a.id)
	return true
}
