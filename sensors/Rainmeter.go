package sensors

import (
	"sync"
	"time"

	"github.com/gr-butler/masthead/alarm"
	"github.com/gr-butler/masthead/env"
	"github.com/gr-butler/masthead/rtc"
	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
)

/*
Tipping bucket rain gauge

Every tip is a fixed volume. The rate comes from the gap between the last two
tips: with a gap of d ms the rate is 3_600_000/d tips an hour. While no tip
arrives the rate is extrapolated downwards from the time since the last tip,
re-checked once per previous gap, so a shower that stops decays instead of
holding its last value. Fifteen minutes without a tip ends the event and the
rate drops to zero.
*/

const msPerHour = 3_600_000.0

type RainState struct {
	DailyTotalMM          float64
	TotalPulses           int64
	RateMMPerHour         float64
	LastTip               time.Time
	EventDeadline         time.Time
	ExtrapolationDeadline time.Time
}

// timerSlot holds at most one pending alarm. Every arm or cancel bumps the
// epoch so a callback that was already on its way when the slot changed can
// tell it is stale.
type timerSlot struct {
	handle   alarm.Handle
	epoch    uint64
	deadline time.Time
}

func (s *timerSlot) arm(a alarm.Scheduler, now time.Time, d time.Duration, f func(epoch uint64)) error {
	s.cancel()
	epoch := s.epoch
	h, err := a.After(d, func() { f(epoch) })
	if err != nil {
		return err
	}
	s.handle = h
	s.deadline = now.Add(d)
	return nil
}

func (s *timerSlot) cancel() {
	if s.handle != nil {
		s.handle.Cancel()
		s.handle = nil
	}
	s.deadline = time.Time{}
	s.epoch++
}

func (s *timerSlot) armed() bool {
	return s.handle != nil
}

// fired claims the slot for a callback. Stale callbacks get false.
func (s *timerSlot) fired(epoch uint64) bool {
	if epoch != s.epoch || s.handle == nil {
		return false
	}
	s.handle = nil
	s.deadline = time.Time{}
	return true
}

type Rainmeter struct {
	counter *TickCounter
	alarms  alarm.Scheduler
	clock   clockwork.Clock
	volume  float64
	window  time.Duration

	lock          sync.Mutex
	daily         float64
	pulses        int64
	rate          float64
	lastTip       time.Time
	gap           time.Duration
	event         timerSlot
	extrapolation timerSlot
	resetOn       rtc.ClockTime
	hasReset      bool
}

func NewRainmeter(counter *TickCounter, alarms alarm.Scheduler, clock clockwork.Clock, cal env.Calibration) *Rainmeter {
	return &Rainmeter{
		counter: counter,
		alarms:  alarms,
		clock:   clock,
		volume:  cal.TipVolumeMM,
		window:  cal.EventWindow,
	}
}

// Tip records the bucket tips counted up to ts. It is installed as the rain
// channel tick hook, so normally there is exactly one waiting.
func (r *Rainmeter) Tip(ts time.Time) {
	n := r.counter.Take()
	if n < 1 {
		n = 1
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.pulses += n
	r.daily += float64(n) * r.volume

	if !r.event.armed() {
		r.resetRateLocked()
	}
	if err := r.event.arm(r.alarms, ts, r.window, r.endEvent); err != nil {
		logger.Errorf("Failed to arm rain event window [%v]", err)
	}

	if r.lastTip.IsZero() {
		r.lastTip = ts
		return
	}
	gap := ts.Sub(r.lastTip)
	r.lastTip = ts
	if gap <= 0 {
		return
	}
	r.gap = gap
	r.rate = r.rateFor(gap)
	if err := r.extrapolation.arm(r.alarms, ts, gap, r.extrapolate); err != nil {
		logger.Errorf("Failed to arm rain rate extrapolation [%v]", err)
	}
	logger.Debugf("Rain tip, gap [%v] rate [%.2f] mm/h", gap, r.rate)
}

func (r *Rainmeter) rateFor(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return msPerHour / ms * r.volume
}

func (r *Rainmeter) resetRateLocked() {
	r.rate = 0
	r.lastTip = time.Time{}
	r.gap = 0
	r.extrapolation.cancel()
}

func (r *Rainmeter) extrapolate(epoch uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.extrapolation.fired(epoch) || r.lastTip.IsZero() {
		return
	}
	now := r.clock.Now()
	if elapsed := now.Sub(r.lastTip); elapsed > 0 {
		r.rate = r.rateFor(elapsed)
	}
	if err := r.extrapolation.arm(r.alarms, now, r.gap, r.extrapolate); err != nil {
		logger.Errorf("Failed to re-arm rain rate extrapolation [%v]", err)
	}
}

func (r *Rainmeter) endEvent(epoch uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.event.fired(epoch) {
		return
	}
	logger.Infof("Rain event ended, daily total [%.1f] mm", r.daily)
	r.resetRateLocked()
}

// OnMinute clears the daily totals at 00:00, once per calendar date.
func (r *Rainmeter) OnMinute(now rtc.ClockTime) {
	if now.Hour != 0 || now.Minute != 0 {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.hasReset && r.resetOn.SameDate(now) {
		return
	}
	logger.Infof("Midnight, resetting daily rain [%.1f] mm, [%v] pulses", r.daily, r.pulses)
	r.daily = 0
	r.pulses = 0
	r.resetOn = now
	r.hasReset = true
}

func (r *Rainmeter) State() RainState {
	r.lock.Lock()
	defer r.lock.Unlock()
	return RainState{
		DailyTotalMM:          r.daily,
		TotalPulses:           r.pulses,
		RateMMPerHour:         r.rate,
		LastTip:               r.lastTip,
		EventDeadline:         r.event.deadline,
		ExtrapolationDeadline: r.extrapolation.deadline,
	}
}

func (r *Rainmeter) Rate() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.rate
}

func (r *Rainmeter) Daily() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.daily
}

func (r *Rainmeter) Pulses() int64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pulses
}
