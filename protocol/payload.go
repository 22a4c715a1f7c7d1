package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gr-butler/masthead/rtc"
)

const (
	ClockSize = 8
	FloatSize = 4
	IntSize   = 4
	// what a master clocks in when the slave has nothing to send
	IdleByte byte = 0xFF
)

var ErrPayloadSize = errors.New("wrong payload size")

type Kind int

const (
	Unsupported Kind = iota
	ClockKind
	FloatKind
	IntKind
)

func (k Kind) Size() int {
	switch k {
	case ClockKind:
		return ClockSize
	case FloatKind:
		return FloatSize
	case IntKind:
		return IntSize
	}
	return 0
}

// Payload is a response staged for the master. Its length is fixed by the
// kind, reads past the end give IdleByte.
type Payload struct {
	kind Kind
	data [ClockSize]byte
}

func ClockPayload(c rtc.ClockTime) Payload {
	p := Payload{kind: ClockKind}
	p.data = EncodeClock(c)
	return p
}

func FloatPayload(v float64) Payload {
	p := Payload{kind: FloatKind}
	binary.LittleEndian.PutUint32(p.data[:FloatSize], math.Float32bits(float32(v)))
	return p
}

func IntPayload(v int64) Payload {
	p := Payload{kind: IntKind}
	binary.LittleEndian.PutUint32(p.data[:IntSize], uint32(int32(v)))
	return p
}

func (p Payload) Kind() Kind {
	return p.kind
}

func (p Payload) Len() int {
	return p.kind.Size()
}

func (p Payload) At(i int) byte {
	if i < 0 || i >= p.Len() {
		return IdleByte
	}
	return p.data[i]
}

func (p Payload) Bytes() []byte {
	return append([]byte(nil), p.data[:p.Len()]...)
}

// EncodeClock lays the clock out as year_hi, year_lo, month, day,
// day_of_week, hour, minute, second.
func EncodeClock(c rtc.ClockTime) [ClockSize]byte {
	return [ClockSize]byte{
		byte(c.Year >> 8), byte(c.Year),
		c.Month, c.Day, c.DayOfWeek,
		c.Hour, c.Minute, c.Second,
	}
}

func DecodeClock(b []byte) (rtc.ClockTime, error) {
	if len(b) != ClockSize {
		return rtc.ClockTime{}, fmt.Errorf("%w: clock needs %v bytes, got %v", ErrPayloadSize, ClockSize, len(b))
	}
	c := rtc.ClockTime{
		Year:      uint16(b[0])<<8 | uint16(b[1]),
		Month:     b[2],
		Day:       b[3],
		DayOfWeek: b[4],
		Hour:      b[5],
		Minute:    b[6],
		Second:    b[7],
	}
	return c, c.Validate()
}

func DecodeFloat(b []byte) (float64, error) {
	if len(b) != FloatSize {
		return 0, fmt.Errorf("%w: float needs %v bytes, got %v", ErrPayloadSize, FloatSize, len(b))
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
}

func DecodeInt(b []byte) (int64, error) {
	if len(b) != IntSize {
		return 0, fmt.Errorf("%w: int needs %v bytes, got %v", ErrPayloadSize, IntSize, len(b))
	}
	return int64(int32(binary.LittleEndian.Uint32(b))), nil
}
