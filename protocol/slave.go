package protocol

import (
	"context"
	"sync"

	"github.com/gr-butler/masthead/rtc"
	logger "github.com/sirupsen/logrus"
)

type Clock interface {
	Now() rtc.ClockTime
	Set(rtc.ClockTime) error
}

// Registers is the table the slave serves. A nil entry is reported to the
// master as unsupported: the command is accepted but the response is empty.
type Registers struct {
	Clock         Clock
	WindSpeed     func() float64
	WindDirection func() int
	RainRate      func() float64
	RainDaily     func() float64
	RainPulses    func() int64
}

type Stats struct {
	Transactions uint64
	Commands     uint64
	Unknown      uint64
	Unsupported  uint64
	ClockSets    uint64
	Rejected     uint64
	OverReads    uint64
}

// Slave is the register protocol state machine. Each event takes the slave
// lock only for the state change itself; register readers take their own
// producers' locks.
type Slave struct {
	regs Registers

	// held for a whole Transact so two masters cannot interleave
	bus sync.Mutex

	lock   sync.Mutex
	state  State
	cmd    Command
	out    Payload
	cursor int
	in     [ClockSize]byte
	inLen  int
	stats  Stats
}

func NewSlave(regs Registers) *Slave {
	return &Slave{regs: regs}
}

// Receive handles a byte written by the master.
func (s *Slave) Receive(b byte) {
	s.lock.Lock()
	state := s.state
	if state == AwaitingCommandPayload {
		if s.inLen < len(s.in) {
			s.in[s.inLen] = b
			s.inLen++
		}
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	// any other state takes the byte as a new command
	s.dispatch(Command(b))
}

func (s *Slave) dispatch(cmd Command) {
	var (
		out       Payload
		supported = true
		next      = RespondingCommandPending
	)
	switch cmd {
	case SetRTC:
		next = AwaitingCommandPayload
	case ReadRTC:
		if s.regs.Clock != nil {
			out = ClockPayload(s.regs.Clock.Now())
		} else {
			supported = false
		}
	case ReadWindSpeed:
		out, supported = floatRegister(s.regs.WindSpeed)
	case ReadWindDirection:
		if s.regs.WindDirection != nil {
			out = FloatPayload(float64(s.regs.WindDirection()))
		} else {
			supported = false
		}
	case ReadRainRate:
		out, supported = floatRegister(s.regs.RainRate)
	case ReadRainDaily:
		out, supported = floatRegister(s.regs.RainDaily)
	case ReadRainPulses:
		if s.regs.RainPulses != nil {
			out = IntPayload(s.regs.RainPulses())
		} else {
			supported = false
		}
	default:
		s.lock.Lock()
		s.reset()
		s.stats.Unknown++
		s.lock.Unlock()
		logger.Debugf("Ignoring unknown command [%v]", cmd)
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.stats.Commands++
	if !supported {
		s.stats.Unsupported++
	}
	s.state = next
	s.cmd = cmd
	s.out = out
	s.cursor = 0
	s.inLen = 0
	s.in = [ClockSize]byte{}
}

func floatRegister(f func() float64) (Payload, bool) {
	if f == nil {
		return Payload{}, false
	}
	return FloatPayload(f()), true
}

// Request returns the next byte for the master.
func (s *Slave) Request() byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch s.state {
	case RespondingCommandPending:
		s.state = Responding
	case Responding:
	case AwaitingCommandPayload:
		// the master gave up on the write
		s.reset()
		return IdleByte
	default:
		return IdleByte
	}
	if s.cursor >= s.out.Len() {
		s.stats.OverReads++
	}
	b := s.out.At(s.cursor)
	s.cursor++
	return b
}

// Finish ends the transaction. A pending clock write is committed only if all
// eight bytes arrived and they form a valid time.
func (s *Slave) Finish() {
	s.lock.Lock()
	var (
		commit bool
		buf    [ClockSize]byte
		n      = s.inLen
	)
	if s.state == AwaitingCommandPayload {
		commit = true
		buf = s.in
	}
	s.reset()
	s.stats.Transactions++
	s.lock.Unlock()

	if !commit {
		return
	}
	if err := s.setClock(buf[:n]); err != nil {
		s.lock.Lock()
		s.stats.Rejected++
		s.lock.Unlock()
		logger.Warnf("Rejected clock write [%v]", err)
		return
	}
	s.lock.Lock()
	s.stats.ClockSets++
	s.lock.Unlock()
}

func (s *Slave) setClock(b []byte) error {
	c, err := DecodeClock(b)
	if err != nil {
		return err
	}
	if s.regs.Clock == nil {
		return ErrUnsupported
	}
	if err := s.regs.Clock.Set(c); err != nil {
		return err
	}
	logger.Infof("Clock set to [%v]", c)
	return nil
}

func (s *Slave) reset() {
	s.state = Idle
	s.cursor = 0
	s.inLen = 0
	s.out = Payload{}
}

func (s *Slave) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *Slave) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.stats
}

// Transact runs one complete bus transaction: every byte of w is received,
// r is filled by requests, then the transaction ends.
func (s *Slave) Transact(w, r []byte) {
	s.bus.Lock()
	defer s.bus.Unlock()
	for _, b := range w {
		s.Receive(b)
	}
	for i := range r {
		r[i] = s.Request()
	}
	s.Finish()
}

type EventKind int

const (
	ReceiveByte EventKind = iota
	RequestByte
	TransactionEnd
)

// Event is one bus peripheral callback. Reply receives the byte for a
// RequestByte and must have room for it.
type Event struct {
	Kind  EventKind
	Data  byte
	Reply chan<- byte
}

func (s *Slave) Handle(ev Event) {
	switch ev.Kind {
	case ReceiveByte:
		s.Receive(ev.Data)
	case RequestByte:
		b := s.Request()
		if ev.Reply != nil {
			ev.Reply <- b
		}
	case TransactionEnd:
		s.Finish()
	}
}

// Serve handles events until ctx is done or events is closed.
func (s *Slave) Serve(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Handle(ev)
		}
	}
}
