package main

import (
	"context"

	"github.com/gr-butler/masthead/sensors"
	logger "github.com/sirupsen/logrus"
)

type flasher interface {
	Flash()
}

// followTicks flashes the rain LED for every bucket tip until ctx is done.
func followTicks(ctx context.Context, events <-chan sensors.Event, rainLed flasher, verbose bool) {
	logger.Info("Status LED following ticks")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Channel != sensors.RainChannel {
				continue
			}
			if verbose {
				logger.Infof("Rain tip [%v] at [%v]", ev.Generation, ev.Time)
			}
			rainLed.Flash()
		}
	}
}
