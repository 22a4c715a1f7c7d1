package sensors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

/*
 * The gauges are plain switches pulled up and shorted to ground, so a tip or
 * a revolution shows up as a falling edge. Debouncing is done in software by
 * the Debouncer, the pin only reports raw edges.
 */

var ErrNoPin = errors.New("gpio pin not found")

// EdgeWatcher feeds the falling edges of one pin into the debouncer.
type EdgeWatcher struct {
	pin     gpio.PinIn
	channel Channel
	d       *Debouncer
	clock   clockwork.Clock
}

func NewEdgeWatcher(pinName string, ch Channel, d *Debouncer, clock clockwork.Clock) (*EdgeWatcher, error) {
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("%w: %v (%v)", ErrNoPin, pinName, ch)
	}
	logger.Infof("%s: %s", p, p.Function())
	return newEdgeWatcher(p, ch, d, clock)
}

func newEdgeWatcher(p gpio.PinIn, ch Channel, d *Debouncer, clock clockwork.Clock) (*EdgeWatcher, error) {
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("%v pin setup failed: %w", ch, err)
	}
	return &EdgeWatcher{pin: p, channel: ch, d: d, clock: clock}, nil
}

// Run blocks until ctx is done.
func (w *EdgeWatcher) Run(ctx context.Context) {
	logger.Infof("Starting %v edge monitor on [%v]", w.channel, w.pin)
	defer func() { _ = w.pin.Halt() }()
	for ctx.Err() == nil {
		// wake up now and then to notice cancellation
		if !w.pin.WaitForEdge(time.Second) {
			continue
		}
		if w.pin.Read() != gpio.Low {
			continue
		}
		ts := w.clock.Now()
		if w.d.OnEdge(w.channel, ts) {
			logger.Debugf("%v tick @ %v", w.channel, ts.Format(time.StampMilli))
		}
	}
}
