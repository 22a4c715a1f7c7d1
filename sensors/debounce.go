package sensors

import (
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/sirupsen/logrus"
)

type Channel int

const (
	RainChannel Channel = iota
	WindChannel
	channelCount
)

func (c Channel) String() string {
	switch c {
	case RainChannel:
		return "rain"
	case WindChannel:
		return "wind"
	}
	return "unknown"
}

// TickCounter counts debounced edges for one channel. The edge handler is the
// only writer; exactly one consumer reads and resets it with Take.
type TickCounter struct {
	lock  sync.Mutex
	count int64
	last  time.Time
	// bumped on every accepted edge and never reset, so it can be compared
	// across polls without the lock
	generation atomic.Uint64
}

func (c *TickCounter) accept(ts time.Time, window time.Duration) (uint64, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.last.IsZero() && ts.Sub(c.last) < window {
		return 0, false
	}
	c.last = ts
	c.count++
	return c.generation.Add(1), true
}

// Take returns the count since the previous Take and resets it to zero.
func (c *TickCounter) Take() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	n := c.count
	c.count = 0
	return n
}

func (c *TickCounter) Count() int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.count
}

func (c *TickCounter) LastAccepted() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.last
}

// Generation is the total number of accepted edges since start up.
func (c *TickCounter) Generation() uint64 {
	return c.generation.Load()
}

// Event is posted for every accepted edge.
type Event struct {
	Channel    Channel
	Time       time.Time
	Generation uint64
}

type debounceChannel struct {
	window  time.Duration
	counter TickCounter
	onTick  func(time.Time)
}

// Debouncer turns raw edges into ticks. OnEdge is called from the edge
// handler and never blocks: a full event queue drops the notification, the
// count is still kept.
type Debouncer struct {
	channels [channelCount]*debounceChannel
	events   chan Event
	dropped  atomic.Uint64
}

func NewDebouncer(rainWindow, windWindow time.Duration, queue int) *Debouncer {
	d := &Debouncer{events: make(chan Event, queue)}
	d.channels[RainChannel] = &debounceChannel{window: rainWindow}
	d.channels[WindChannel] = &debounceChannel{window: windWindow}
	return d
}

func (d *Debouncer) Counter(ch Channel) *TickCounter {
	return &d.channels[ch].counter
}

// OnTick installs the hook run after every accepted edge on ch. Install
// hooks before edges start arriving.
func (d *Debouncer) OnTick(ch Channel, f func(time.Time)) {
	d.channels[ch].onTick = f
}

func (d *Debouncer) Events() <-chan Event {
	return d.events
}

// Dropped returns the number of notifications lost to a full queue.
func (d *Debouncer) Dropped() uint64 {
	return d.dropped.Load()
}

// OnEdge handles one raw edge and reports whether it was counted.
func (d *Debouncer) OnEdge(ch Channel, ts time.Time) bool {
	if ch < 0 || ch >= channelCount {
		return false
	}
	c := d.channels[ch]
	gen, ok := c.counter.accept(ts, c.window)
	if !ok {
		return false
	}
	if c.onTick != nil {
		c.onTick(ts)
	}
	select {
	case d.events <- Event{Channel: ch, Time: ts, Generation: gen}:
	default:
		if d.dropped.Add(1)%100 == 1 {
			logger.Debugf("Event queue full, dropped [%v] notifications", d.dropped.Load())
		}
	}
	return true
}
