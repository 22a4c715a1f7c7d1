package buffer

import (
	"math"
	"sync"
)

type Average float64
type Minimum float64
type Maximum float64

// SampleBuffer keeps the last size samples. Statistics only cover slots that
// have been written, so a fresh buffer does not average in zeros.
type SampleBuffer struct {
	position int
	size     int
	filled   int
	data     []float64
	lock     sync.Mutex
}

func NewBuffer(size int) *SampleBuffer {
	if size < 1 {
		size = 1
	}
	return &SampleBuffer{
		size: size,
		data: make([]float64, size),
	}
}

func (b *SampleBuffer) AddItem(val float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data[b.position] = val
	b.position += 1
	if b.position == b.size {
		b.position = 0
	}
	if b.filled < b.size {
		b.filled += 1
	}
}

// GetAverageMinMax returns zeros when nothing has been added yet.
func (b *SampleBuffer) GetAverageMinMax() (Average, Minimum, Maximum) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.filled == 0 {
		return 0, 0, 0
	}
	min := math.MaxFloat64
	max := -math.MaxFloat64
	sum := 0.0
	// the oldest slot is at position once the buffer has wrapped
	start := 0
	if b.filled == b.size {
		start = b.position
	}
	for i := 0; i < b.filled; i++ {
		x := b.data[(start+i)%b.size]
		if x > max {
			max = x
		}
		if x < min {
			min = x
		}
		sum += x
	}
	return Average(sum / float64(b.filled)), Minimum(min), Maximum(max)
}

func (b *SampleBuffer) GetLast() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.filled == 0 {
		return 0
	}
	index := b.position - 1
	if index < 0 {
		index += b.size
	}
	return b.data[index]
}

func (b *SampleBuffer) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.filled
}

func (b *SampleBuffer) GetSize() int {
	return b.size
}
