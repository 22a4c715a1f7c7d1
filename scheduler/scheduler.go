// Package scheduler drives periodic callbacks from the clock's single alarm.
//
// The alarm is re-armed from the clock value read after every firing rather
// than from a deadline computed once, so the cadence recovers by itself when
// the clock is rewritten between arm and fire.
package scheduler

import (
	"errors"
	"sync"

	"github.com/gr-butler/masthead/rtc"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrInvalidInterval = errors.New("interval must be 1-59 seconds or 60")
	ErrNoCallbacks     = errors.New("no callbacks registered")
)

type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// Clock is the alarm facility the scheduler runs on.
type Clock interface {
	Now() rtc.ClockTime
	SetAlarm(m rtc.Match, f func())
	CancelAlarm() bool
}

type Callback func(now rtc.ClockTime)

type callback struct {
	name     string
	minutely bool
	f        Callback
}

type Scheduler struct {
	clock      Clock
	seconds    int
	lock       sync.Mutex
	state      State
	callbacks  []callback
	lastMinute rtc.ClockTime
	minuteSeen bool
	fired      uint64
}

// New returns a scheduler firing every seconds seconds. 60 fires on the
// minute boundary.
func New(clock Clock, seconds int) (*Scheduler, error) {
	if seconds < 1 || seconds > 60 {
		return nil, ErrInvalidInterval
	}
	return &Scheduler{clock: clock, seconds: seconds}, nil
}

// Register adds a callback run on every firing.
func (s *Scheduler) Register(name string, f Callback) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.callbacks = append(s.callbacks, callback{name: name, f: f})
}

// RegisterMinutely adds a callback run on the first firing of every clock
// minute.
func (s *Scheduler) RegisterMinutely(name string, f Callback) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.callbacks = append(s.callbacks, callback{name: name, minutely: true, f: f})
}

func (s *Scheduler) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.callbacks) == 0 {
		return ErrNoCallbacks
	}
	if s.state == Armed {
		return nil
	}
	s.armLocked()
	return nil
}

func (s *Scheduler) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state == Armed {
		s.clock.CancelAlarm()
	}
	s.state = Idle
}

func (s *Scheduler) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Fired returns the number of alarm firings handled.
func (s *Scheduler) Fired() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.fired
}

func (s *Scheduler) armLocked() {
	target := 0
	if s.seconds < 60 {
		target = (int(s.clock.Now().Second) + s.seconds) % 60
	}
	s.clock.SetAlarm(rtc.OnSecond(target), s.fire)
	s.state = Armed
}

func (s *Scheduler) fire() {
	now := s.clock.Now()

	s.lock.Lock()
	if s.state != Armed {
		s.lock.Unlock()
		return
	}
	s.fired++
	newMinute := !s.minuteSeen || !sameMinute(s.lastMinute, now)
	s.lastMinute = now
	s.minuteSeen = true
	run := make([]callback, 0, len(s.callbacks))
	for _, c := range s.callbacks {
		if c.minutely && !newMinute {
			continue
		}
		run = append(run, c)
	}
	s.lock.Unlock()

	for _, c := range run {
		logger.Debugf("Scheduler running [%v] @ %v", c.name, now)
		c.f(now)
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	// Stop may have been called by a callback
	if s.state == Armed {
		s.armLocked()
	}
}

func sameMinute(a, b rtc.ClockTime) bool {
	return a.SameDate(b) && a.Hour == b.Hour && a.Minute == b.Minute
}
