// Package rtc keeps the node's wall clock and its single alarm.
//
// The clock is a calendar record (no time zone) stored as an offset from a
// monotonic clockwork.Clock, so setting it never disturbs timers that were
// armed on the underlying clock.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrInvalidTime = errors.New("invalid clock time")

// ClockTime is the authoritative wall clock value. DayOfWeek is 0 for Sunday.
type ClockTime struct {
	Year      uint16
	Month     uint8
	Day       uint8
	DayOfWeek uint8
	Hour      uint8
	Minute    uint8
	Second    uint8
}

func FromTime(t time.Time) ClockTime {
	return ClockTime{
		Year:      uint16(t.Year()),
		Month:     uint8(t.Month()),
		Day:       uint8(t.Day()),
		DayOfWeek: uint8(t.Weekday()),
		Hour:      uint8(t.Hour()),
		Minute:    uint8(t.Minute()),
		Second:    uint8(t.Second()),
	}
}

// Time returns the calendar value as a UTC time. DayOfWeek is not used.
func (c ClockTime) Time() time.Time {
	return time.Date(int(c.Year), time.Month(c.Month), int(c.Day),
		int(c.Hour), int(c.Minute), int(c.Second), 0, time.UTC)
}

func (c ClockTime) Validate() error {
	switch {
	case c.Year > 4095:
		return fmt.Errorf("%w: year %v", ErrInvalidTime, c.Year)
	case c.Month < 1 || c.Month > 12:
		return fmt.Errorf("%w: month %v", ErrInvalidTime, c.Month)
	case c.Day < 1 || int(c.Day) > daysIn(time.Month(c.Month), int(c.Year)):
		return fmt.Errorf("%w: day %v", ErrInvalidTime, c.Day)
	case c.DayOfWeek > 6:
		return fmt.Errorf("%w: day of week %v", ErrInvalidTime, c.DayOfWeek)
	case c.Hour > 23:
		return fmt.Errorf("%w: hour %v", ErrInvalidTime, c.Hour)
	case c.Minute > 59:
		return fmt.Errorf("%w: minute %v", ErrInvalidTime, c.Minute)
	case c.Second > 59:
		return fmt.Errorf("%w: second %v", ErrInvalidTime, c.Second)
	}
	return nil
}

// SameDate reports whether both values fall on the same calendar day.
func (c ClockTime) SameDate(o ClockTime) bool {
	return c.Year == o.Year && c.Month == o.Month && c.Day == o.Day
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second)
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Any is the wildcard value for a Match field.
const Any = -1

// Match selects the clock values an alarm fires on. Fields set to Any are
// ignored.
type Match struct {
	Year      int
	Month     int
	Day       int
	DayOfWeek int
	Hour      int
	Minute    int
	Second    int
}

// OnSecond matches once a minute, when the seconds field equals sec.
func OnSecond(sec int) Match {
	return Match{Year: Any, Month: Any, Day: Any, DayOfWeek: Any, Hour: Any, Minute: Any, Second: sec}
}

func (m Match) matches(c ClockTime) bool {
	return field(m.Year, int(c.Year)) &&
		field(m.Month, int(c.Month)) &&
		field(m.Day, int(c.Day)) &&
		field(m.DayOfWeek, int(c.DayOfWeek)) &&
		field(m.Hour, int(c.Hour)) &&
		field(m.Minute, int(c.Minute)) &&
		field(m.Second, int(c.Second))
}

func field(want, got int) bool {
	return want == Any || want == got
}

type pendingAlarm struct {
	match   Match
	armedAt ClockTime
	f       func()
}

type RTC struct {
	clock   clockwork.Clock
	lock    sync.Mutex
	offset  time.Duration
	dowSkew uint8
	alarm   *pendingAlarm
}

func New(clock clockwork.Clock, start ClockTime) (*RTC, error) {
	r := &RTC{clock: clock}
	if err := r.Set(start); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RTC) Now() ClockTime {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.nowLocked()
}

func (r *RTC) nowLocked() ClockTime {
	c := FromTime(r.clock.Now().UTC().Add(r.offset))
	c.DayOfWeek = (c.DayOfWeek + r.dowSkew) % 7
	return c
}

// Set overwrites the clock. The day of week is stored as given even when it
// disagrees with the date, so a read after a set returns the same record.
func (r *RTC) Set(c ClockTime) error {
	if err := c.Validate(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	t := c.Time()
	r.offset = t.Sub(r.clock.Now().UTC())
	r.dowSkew = (c.DayOfWeek + 7 - uint8(t.Weekday())) % 7
	return nil
}

// SetAlarm replaces any pending alarm. The alarm fires once, the first time
// the clock matches after the second it was armed in.
func (r *RTC) SetAlarm(m Match, f func()) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.alarm = &pendingAlarm{match: m, armedAt: r.nowLocked(), f: f}
}

func (r *RTC) CancelAlarm() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	pending := r.alarm != nil
	r.alarm = nil
	return pending
}

func (r *RTC) AlarmPending() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.alarm != nil
}

// Check fires the pending alarm if the clock matches it and reports whether
// it did. The callback runs without the clock lock held.
func (r *RTC) Check() bool {
	r.lock.Lock()
	a := r.alarm
	if a == nil {
		r.lock.Unlock()
		return false
	}
	now := r.nowLocked()
	if now == a.armedAt || !a.match.matches(now) {
		r.lock.Unlock()
		return false
	}
	r.alarm = nil
	r.lock.Unlock()
	a.f()
	return true
}

// Run polls the alarm until ctx is done. poll must be well under a second
// or a matching second can be skipped.
func (r *RTC) Run(ctx context.Context, poll time.Duration) {
	ticker := r.clock.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Check()
		}
	}
}
