package protocol

import (
	"errors"
	"testing"

	"github.com/gr-butler/masthead/rtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
)

func TestClientOverLoopback(t *testing.T) {
	b := newBench(t)
	c := NewClient(NewLoopback(b.slave))
	assert.Equal(t, "loopback", c.String())

	now, err := c.ReadClock()
	require.NoError(t, err)
	assert.Equal(t, start, now)

	set := rtc.ClockTime{Year: 2022, Month: 12, Day: 31, DayOfWeek: 6, Hour: 23, Minute: 59, Second: 58}
	require.NoError(t, c.SetClock(set))
	now, err = c.ReadClock()
	require.NoError(t, err)
	assert.Equal(t, set, now)

	assert.ErrorIs(t, c.SetClock(rtc.ClockTime{Year: 2022, Month: 2, Day: 30}), rtc.ErrInvalidTime)

	speed, err := c.ReadWindSpeed()
	require.NoError(t, err)
	assert.Equal(t, 12.5, speed)

	dir, err := c.ReadWindDirection()
	require.NoError(t, err)
	assert.Equal(t, 270, dir)

	rate, err := c.ReadRainRate()
	require.NoError(t, err)
	assert.Equal(t, 24.0, rate)

	daily, err := c.ReadRainDaily()
	require.NoError(t, err)
	assert.InDelta(t, 3.2, daily, 1e-6)

	pulses, err := c.ReadRainPulses()
	require.NoError(t, err)
	assert.Equal(t, int64(16), pulses)
}

type brokenConn struct{}

func (brokenConn) String() string       { return "broken" }
func (brokenConn) Duplex() conn.Duplex  { return conn.Half }
func (brokenConn) Tx(w, r []byte) error { return errors.New("nack") }

func TestClientTransportError(t *testing.T) {
	c := NewClient(brokenConn{})
	_, err := c.ReadWindSpeed()
	assert.EqualError(t, err, "READ_WIND_SPEED: nack")
	assert.Error(t, c.SetClock(start))
}

func TestDecodeSizes(t *testing.T) {
	_, err := DecodeClock([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrPayloadSize)
	_, err = DecodeFloat(nil)
	assert.ErrorIs(t, err, ErrPayloadSize)
	_, err = DecodeInt([]byte{1})
	assert.ErrorIs(t, err, ErrPayloadSize)

	v, err := DecodeInt([]byte{0xFE, 0xFF, 0xFF, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, int64(-2), v)

	p := IntPayload(7)
	assert.Equal(t, IntKind, p.Kind())
	assert.Equal(t, []byte{7, 0, 0, 0}, p.Bytes())
	assert.Equal(t, IdleByte, p.At(4))
	assert.Equal(t, 0, Payload{}.Len())
}
