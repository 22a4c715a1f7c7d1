package alarm

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterFiresOnce(t *testing.T) {
	p := NewPool(clockwork.NewRealClock(), 4)
	var fired int32
	_, err := p.After(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	require.NoError(t, err)
	assert.Equal(t, 1, p.Pending())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fired) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.Equal(t, 0, p.Pending())
}

func TestCancelBeforeFire(t *testing.T) {
	p := NewPool(clockwork.NewRealClock(), 4)
	var fired int32
	h, err := p.After(40*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	require.NoError(t, err)

	assert.True(t, h.Cancel())
	assert.False(t, h.Cancel())
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&fired))
	assert.Equal(t, 0, p.Pending())
}

func TestEveryRepeatsUntilCancelled(t *testing.T) {
	p := NewPool(clockwork.NewRealClock(), 4)
	var fired int32
	h, err := p.Every(10*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fired) >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, p.Pending())
	assert.True(t, h.Cancel())

	n := atomic.LoadInt32(&fired)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, atomic.LoadInt32(&fired))
}

func TestCancelWhileCallbackRuns(t *testing.T) {
	p := NewPool(clockwork.NewRealClock(), 4)
	var fired int32
	started := make(chan struct{})
	release := make(chan struct{})
	h, err := p.Every(50*time.Millisecond, func() {
		if atomic.AddInt32(&fired, 1) == 1 {
			close(started)
			<-release
		}
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("alarm did not fire")
	}
	// the running callback is not interrupted, the next period is dropped
	assert.True(t, h.Cancel())
	assert.Equal(t, 0, p.Pending())
	close(release)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fired))
	assert.False(t, h.Cancel())
}

func TestRegistrationFailures(t *testing.T) {
	p := NewPool(clockwork.NewRealClock(), 1)

	_, err := p.After(0, func() {})
	assert.ErrorIs(t, err, ErrInvalidDelay)

	h, err := p.Every(time.Hour, func() {})
	require.NoError(t, err)
	_, err = p.After(time.Hour, func() {})
	assert.ErrorIs(t, err, ErrPoolExhausted)

	// freeing the slot makes room again
	h.Cancel()
	_, err = p.After(time.Hour, func() {})
	assert.NoError(t, err)

	p.Close()
	assert.Equal(t, 0, p.Pending())
}
