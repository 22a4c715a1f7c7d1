package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gr-butler/masthead/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
)

func TestReadAll(t *testing.T) {
	s := protocol.NewSlave(protocol.Registers{
		WindSpeed:  func() float64 { return 12.25 },
		RainRate:   func() float64 { return 0 },
		RainDaily:  func() float64 { return 1.5 },
		RainPulses: func() int64 { return 7 },
	})
	var out bytes.Buffer
	require.NoError(t, readAll(&out, protocol.NewClient(protocol.NewLoopback(s))))
	assert.Equal(t,
		"clock            unsupported\n"+
			"wind speed km/h  12.25\n"+
			"wind direction   unsupported\n"+
			"rain rate mm/h   0.00\n"+
			"rain today mm    1.50\n"+
			"rain pulses      7\n",
		out.String())
}

type deadBus struct{}

func (deadBus) String() string       { return "dead" }
func (deadBus) Duplex() conn.Duplex  { return conn.Half }
func (deadBus) Tx(w, r []byte) error { return errors.New("no ack") }

func TestReadAllStopsOnBusError(t *testing.T) {
	var out bytes.Buffer
	err := readAll(&out, protocol.NewClient(deadBus{}))
	assert.EqualError(t, err, "clock: READ_RTC: no ack")
	assert.Empty(t, out.String())
}
