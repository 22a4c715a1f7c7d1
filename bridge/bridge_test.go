package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gr-butler/masthead/protocol"
	"github.com/gr-butler/masthead/rtc"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBridge(t *testing.T, s Transactor) (*Conn, func()) {
	master, slave := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeConn(ctx, slave, s)
	}()
	return NewConn("pipe", master), func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(3 * time.Second):
			t.Error("bridge did not stop")
		}
		_ = master.Close()
	}
}

func TestClientOverBridge(t *testing.T) {
	start := rtc.ClockTime{Year: 2020, Month: 6, Day: 15, DayOfWeek: 1, Hour: 12, Minute: 30}
	clock, err := rtc.New(clockwork.NewFakeClock(), start)
	require.NoError(t, err)
	s := protocol.NewSlave(protocol.Registers{
		Clock:     clock,
		WindSpeed: func() float64 { return 7.5 },
	})

	c, stop := startBridge(t, s)
	defer stop()
	client := protocol.NewClient(c)
	assert.Equal(t, "bridge(pipe)", client.String())

	now, err := client.ReadClock()
	require.NoError(t, err)
	assert.Equal(t, start, now)

	speed, err := client.ReadWindSpeed()
	require.NoError(t, err)
	assert.Equal(t, 7.5, speed)

	_, err = client.ReadRainDaily()
	assert.ErrorIs(t, err, protocol.ErrUnsupported)

	set := start
	set.Year = 2024
	require.NoError(t, client.SetClock(set))
	assert.Equal(t, set, clock.Now())
}

func TestStrayBytesSkipped(t *testing.T) {
	s := protocol.NewSlave(protocol.Registers{RainPulses: func() int64 { return 3 }})
	master, slave := net.Pipe()
	defer master.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ServeConn(ctx, slave, s) }()

	go func() {
		_, _ = master.Write([]byte{0x00, 0x13, RequestMarker, 1, 4, byte(protocol.ReadRainPulses)})
	}()
	reply := make([]byte, 6)
	_ = master.SetReadDeadline(time.Now().Add(3 * time.Second))
	n := 0
	for n < len(reply) {
		m, err := master.Read(reply[n:])
		require.NoError(t, err)
		n += m
	}
	assert.Equal(t, []byte{ReplyMarker, 4, 3, 0, 0, 0}, reply)
}

func TestOversizedFrameDrained(t *testing.T) {
	s := protocol.NewSlave(protocol.Registers{RainPulses: func() int64 { return 3 }})
	master, slave := net.Pipe()
	defer master.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ServeConn(ctx, slave, s) }()

	// the write bytes are all request markers, none may start a frame
	frame := []byte{RequestMarker, MaxTransfer + 8, 4}
	for i := 0; i < MaxTransfer+8; i++ {
		frame = append(frame, RequestMarker)
	}
	frame = append(frame, RequestMarker, 1, 4, byte(protocol.ReadRainPulses))
	go func() { _, _ = master.Write(frame) }()

	reply := make([]byte, 8)
	_ = master.SetReadDeadline(time.Now().Add(3 * time.Second))
	n := 0
	for n < len(reply) {
		m, err := master.Read(reply[n:])
		require.NoError(t, err)
		n += m
	}
	assert.Equal(t, []byte{ReplyMarker, 0, ReplyMarker, 4, 3, 0, 0, 0}, reply)
}

func TestEventBusOverBridge(t *testing.T) {
	s := protocol.NewSlave(protocol.Registers{RainPulses: func() int64 { return 9 }})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan protocol.Event)
	go func() { _ = s.Serve(ctx, events) }()

	c, stop := startBridge(t, protocol.NewEventBus(ctx, events))
	defer stop()
	pulses, err := protocol.NewClient(c).ReadRainPulses()
	require.NoError(t, err)
	assert.Equal(t, int64(9), pulses)
	assert.Eventually(t, func() bool { return s.State() == protocol.Idle }, time.Second, 5*time.Millisecond)
}

func TestTxTooLong(t *testing.T) {
	c := NewConn("none", nil)
	err := c.Tx(make([]byte, MaxTransfer+1), nil)
	assert.ErrorIs(t, err, ErrTooLong)
}
