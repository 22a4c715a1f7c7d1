package alarm

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	ErrPoolExhausted = errors.New("no free alarm slots")
	ErrInvalidDelay  = errors.New("alarm delay must be positive")
)

// Handle is returned for every registered alarm.
type Handle interface {
	// Cancel stops the alarm. It reports whether the alarm was still pending.
	// Once Cancel returns the alarm will not be scheduled again, but a
	// callback that is already running is not interrupted.
	Cancel() bool
}

// Scheduler arms one-shot and repeating alarms.
type Scheduler interface {
	After(d time.Duration, f func()) (Handle, error)
	// Every fires start-to-start: the next deadline is the previous deadline
	// plus d, however long the callback took.
	Every(d time.Duration, f func()) (Handle, error)
}

// Pool is a fixed size set of alarm slots on top of a clock. Callbacks run on
// their own goroutine.
type Pool struct {
	clock   clockwork.Clock
	size    int
	lock    sync.Mutex
	pending map[uint64]*entry
	nextID  uint64
}

type entry struct {
	pool     *Pool
	id       uint64
	timer    clockwork.Timer
	period   time.Duration
	deadline time.Time
	f        func()
}

func NewPool(clock clockwork.Clock, size int) *Pool {
	return &Pool{
		clock:   clock,
		size:    size,
		pending: make(map[uint64]*entry),
	}
}

func (p *Pool) After(d time.Duration, f func()) (Handle, error) {
	return p.add(d, 0, f)
}

func (p *Pool) Every(d time.Duration, f func()) (Handle, error) {
	return p.add(d, d, f)
}

func (p *Pool) add(d time.Duration, period time.Duration, f func()) (Handle, error) {
	if d <= 0 {
		return nil, ErrInvalidDelay
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.pending) >= p.size {
		return nil, ErrPoolExhausted
	}
	p.nextID++
	e := &entry{
		pool:     p,
		id:       p.nextID,
		period:   period,
		deadline: p.clock.Now().Add(d),
		f:        f,
	}
	p.pending[e.id] = e
	id := e.id
	e.timer = p.clock.AfterFunc(d, func() { p.fire(id) })
	return e, nil
}

func (p *Pool) fire(id uint64) {
	p.lock.Lock()
	e, ok := p.pending[id]
	if !ok {
		// cancelled while the timer goroutine was starting
		p.lock.Unlock()
		return
	}
	if e.period > 0 {
		e.deadline = e.deadline.Add(e.period)
		wait := e.deadline.Sub(p.clock.Now())
		for wait <= 0 {
			// we fell behind, drop the missed periods
			e.deadline = e.deadline.Add(e.period)
			wait += e.period
		}
		e.timer = p.clock.AfterFunc(wait, func() { p.fire(id) })
	} else {
		delete(p.pending, id)
	}
	f := e.f
	p.lock.Unlock()
	f()
}

// Pending returns the number of occupied slots.
func (p *Pool) Pending() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.pending)
}

// Close cancels every pending alarm.
func (p *Pool) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	for id, e := range p.pending {
		e.timer.Stop()
		delete(p.pending, id)
	}
}

func (e *entry) Cancel() bool {
	p := e.pool
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.pending[e.id]; !ok {
		return false
	}
	delete(p.pending, e.id)
	e.timer.Stop()
	return true
}
