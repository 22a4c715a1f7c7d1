package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyBuffer(t *testing.T) {
	buf := NewBuffer(10)

	a, mn, mx := buf.GetAverageMinMax()
	assert.Equal(t, Average(0), a)
	assert.Equal(t, Minimum(0), mn)
	assert.Equal(t, Maximum(0), mx)
	assert.Equal(t, 0.0, buf.GetLast())
	assert.Equal(t, 0, buf.Len())
}

func TestAddItem(t *testing.T) {
	buf := NewBuffer(4)

	buf.AddItem(2)
	buf.AddItem(4)

	a, mn, mx := buf.GetAverageMinMax()
	assert.Equal(t, Average(3), a)
	assert.Equal(t, Minimum(2), mn)
	assert.Equal(t, Maximum(4), mx)
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, 4.0, buf.GetLast())

	buf.AddItem(6)
	buf.AddItem(8)
	buf.AddItem(10)

	// 2 has been overwritten
	a, mn, mx = buf.GetAverageMinMax()
	assert.Equal(t, Average(7), a)
	assert.Equal(t, Minimum(4), mn)
	assert.Equal(t, Maximum(10), mx)
	assert.Equal(t, 4, buf.Len())
	assert.Equal(t, 10.0, buf.GetLast())
	assert.Equal(t, 4, buf.GetSize())
}

func TestZeroSize(t *testing.T) {
	buf := NewBuffer(0)
	buf.AddItem(1.5)
	buf.AddItem(2.5)
	assert.Equal(t, 1, buf.Len())
	assert.Equal(t, 2.5, buf.GetLast())
}
