package protocol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gr-butler/masthead/rtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientOverEventBus(t *testing.T) {
	b := newBench(t)
	events := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.ErrorIs(t, b.slave.Serve(ctx, events), context.Canceled)
	}()

	c := NewClient(NewLoopback(NewEventBus(ctx, events)))
	pulses, err := c.ReadRainPulses()
	require.NoError(t, err)
	assert.Equal(t, int64(16), pulses)

	set := rtc.ClockTime{Year: 2022, Month: 12, Day: 31, DayOfWeek: 6, Hour: 23, Minute: 59, Second: 58}
	require.NoError(t, c.SetClock(set))
	now, err := c.ReadClock()
	require.NoError(t, err)
	assert.Equal(t, set, now)
	assert.Eventually(t, func() bool { return b.slave.State() == Idle }, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
}

func TestEventBusAfterCancelReadsIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus := NewEventBus(ctx, make(chan Event))

	r := []byte{0, 0, 0, 0}
	bus.Transact([]byte{byte(ReadRainPulses)}, r)
	assert.Equal(t, []byte{IdleByte, IdleByte, IdleByte, IdleByte}, r)
}
