package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/gr-butler/masthead/alarm"
	"github.com/gr-butler/masthead/alarm/alarmtest"
	"github.com/gr-butler/masthead/env"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVane struct {
	raw int
	err error
}

func (v *fakeVane) ReadRaw() (int, error) {
	return v.raw, v.err
}

func TestSpeedFromPulses(t *testing.T) {
	// 100 pulses in 3s is 75 mph
	assert.InDelta(t, 120.7005, SpeedFromPulses(100, 3*time.Second), 0.0001)
	assert.Equal(t, 0.0, SpeedFromPulses(0, 3*time.Second))
}

func TestRawToDegrees(t *testing.T) {
	assert.Equal(t, 0, RawToDegrees(0))
	assert.Equal(t, 360, RawToDegrees(4095))
	assert.InDelta(t, 180, RawToDegrees(2048), 1)
	assert.Equal(t, 360, RawToDegrees(5000))
	assert.Equal(t, 0, RawToDegrees(-3))
}

func TestWindSampler(t *testing.T) {
	m := alarmtest.New(clockwork.NewFakeClockAt(t0))
	d := NewDebouncer(env.RainDebounce, env.WindDebounce, 0)
	vane := &fakeVane{raw: 1024}
	a := NewAnemometer(d.Counter(WindChannel), vane, env.DefaultCalibration())
	require.NoError(t, a.Start(m))
	assert.ErrorIs(t, a.Start(m), ErrAlreadyStarted)
	assert.Equal(t, 2, m.Pending())

	for i := 0; i < 100; i++ {
		d.OnEdge(WindChannel, t0.Add(time.Duration(i)*25*time.Millisecond))
	}
	m.Advance(time.Second)
	assert.Equal(t, 90, a.Direction())
	assert.Equal(t, 0.0, a.Speed())

	m.Advance(2 * time.Second)
	assert.InDelta(t, 120.7005, a.Speed(), 0.0001)
	assert.Equal(t, int64(0), d.Counter(WindChannel).Count())

	// a calm period and a failed vane read
	vane.err = errors.New("i2c timeout")
	m.Advance(3 * time.Second)
	s := a.Sample()
	assert.Equal(t, 0.0, s.Speed)
	assert.Equal(t, 90, s.Direction)
	assert.InDelta(t, 120.7005, s.Gust, 0.0001)
	assert.InDelta(t, 60.35025, s.Average, 0.0001)

	a.Stop()
	assert.Equal(t, 0, m.Pending())
}

func TestWindSamplerWithoutVane(t *testing.T) {
	m := alarmtest.New(clockwork.NewFakeClock())
	d := NewDebouncer(env.RainDebounce, env.WindDebounce, 0)
	a := NewAnemometer(d.Counter(WindChannel), nil, env.DefaultCalibration())
	require.NoError(t, a.Start(m))
	assert.Equal(t, 1, m.Pending())
	assert.False(t, a.HasVane())
}

func TestWindSamplerRegistrationFailure(t *testing.T) {
	m := alarmtest.New(clockwork.NewFakeClock())
	m.Limit = 1
	d := NewDebouncer(env.RainDebounce, env.WindDebounce, 0)
	a := NewAnemometer(d.Counter(WindChannel), &fakeVane{}, env.DefaultCalibration())

	err := a.Start(m)
	assert.ErrorIs(t, err, alarm.ErrPoolExhausted)
	// the speed job was rolled back
	assert.Equal(t, 0, m.Pending())

	// readings stay at their zero value
	m.Advance(time.Minute)
	assert.Equal(t, WindSample{}, a.Sample())
}
