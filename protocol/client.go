package protocol

import (
	"errors"
	"fmt"

	"github.com/gr-butler/masthead/rtc"
	"periph.io/x/conn/v3"
)

var ErrUnsupported = errors.New("register not supported")

// Client is the bus master side. Any periph connection works, normally an
// i2c.Dev addressed at the masthead.
type Client struct {
	c conn.Conn
}

func NewClient(c conn.Conn) *Client {
	return &Client{c: c}
}

func (c *Client) String() string {
	return c.c.String()
}

func (c *Client) read(cmd Command, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := c.c.Tx([]byte{byte(cmd)}, r); err != nil {
		return nil, fmt.Errorf("%v: %w", cmd, err)
	}
	// an empty response reads as an idle bus
	for _, b := range r {
		if b != IdleByte {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%v: %w", cmd, ErrUnsupported)
}

func (c *Client) ReadClock() (rtc.ClockTime, error) {
	b, err := c.read(ReadRTC, ClockSize)
	if err != nil {
		return rtc.ClockTime{}, err
	}
	return DecodeClock(b)
}

func (c *Client) SetClock(t rtc.ClockTime) error {
	if err := t.Validate(); err != nil {
		return err
	}
	enc := EncodeClock(t)
	w := append([]byte{byte(SetRTC)}, enc[:]...)
	if err := c.c.Tx(w, nil); err != nil {
		return fmt.Errorf("%v: %w", SetRTC, err)
	}
	return nil
}

func (c *Client) readFloat(cmd Command) (float64, error) {
	b, err := c.read(cmd, FloatSize)
	if err != nil {
		return 0, err
	}
	return DecodeFloat(b)
}

// ReadWindSpeed returns km/h.
func (c *Client) ReadWindSpeed() (float64, error) {
	return c.readFloat(ReadWindSpeed)
}

func (c *Client) ReadWindDirection() (int, error) {
	v, err := c.readFloat(ReadWindDirection)
	return int(v), err
}

// ReadRainRate returns mm/h.
func (c *Client) ReadRainRate() (float64, error) {
	return c.readFloat(ReadRainRate)
}

func (c *Client) ReadRainDaily() (float64, error) {
	return c.readFloat(ReadRainDaily)
}

func (c *Client) ReadRainPulses() (int64, error) {
	b, err := c.read(ReadRainPulses, IntSize)
	if err != nil {
		return 0, err
	}
	return DecodeInt(b)
}
