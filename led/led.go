package led

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

type LED struct {
	Name  string
	lock  sync.Mutex
	on    bool
	pin   gpio.PinOut
	clock clockwork.Clock
	pulse time.Duration
}

// Open finds the LED pin by name. A missing pin is logged and gives an LED
// that does nothing.
func Open(name string, pinName string, pulse time.Duration) *LED {
	logger.Infof("Creating new LED on pin [%v] called [%v]", pinName, name)
	p := gpioreg.ByName(pinName)
	if p == nil {
		logger.Errorf("Failed to find %v pin", pinName)
		return NewLED(name, nil, clockwork.NewRealClock(), pulse)
	}
	return NewLED(name, p, clockwork.NewRealClock(), pulse)
}

func NewLED(name string, pin gpio.PinOut, clock clockwork.Clock, pulse time.Duration) *LED {
	l := &LED{Name: name, pin: pin, clock: clock, pulse: pulse}
	if pin != nil {
		_ = pin.Out(gpio.Low)
	}
	return l
}

func (l *LED) On() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = true
	if l.pin != nil {
		_ = l.pin.Out(gpio.High)
	}
}

func (l *LED) Off() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = false
	if l.pin != nil {
		_ = l.pin.Out(gpio.Low)
	}
}

// Flash inverts the LED for one pulse. A flash already in progress swallows
// the request.
func (l *LED) Flash() {
	if l.pin == nil {
		return
	}
	if !l.lock.TryLock() {
		logger.Debugf("LED [%v] busy", l.Name)
		return
	}
	defer l.lock.Unlock()
	if !l.on {
		_ = l.pin.Out(gpio.High)
		l.clock.Sleep(l.pulse)
		_ = l.pin.Out(gpio.Low)
	} else {
		// 'off' flash
		_ = l.pin.Out(gpio.Low)
		l.clock.Sleep(l.pulse)
		_ = l.pin.Out(gpio.High)
	}
}

func (l *LED) Flicker(pulses int) {
	if l.pin == nil {
		return
	}
	if pulses < 1 || pulses > 100 {
		// reject daft or excessive requests
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := 0; i < pulses; i++ {
		_ = l.pin.Out(gpio.High)
		l.clock.Sleep(l.pulse)
		_ = l.pin.Out(gpio.Low)
		l.clock.Sleep(l.pulse)
	}
	if l.on {
		_ = l.pin.Out(gpio.High)
	}
}

func (l *LED) IsOn() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on
}
