// Package bridge carries bus transactions over a serial line, for hosts
// where the masthead cannot sit on the I2C bus directly.
//
// A request frame is 0xA5, write length, read length and the write bytes.
// The reply is 0x5A, read length and the bytes read. One frame is one
// complete bus transaction.
package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	serial "github.com/tarm/goserial"
	"periph.io/x/conn/v3"
)

const (
	RequestMarker byte = 0xA5
	ReplyMarker   byte = 0x5A
	MaxTransfer        = 32
)

var (
	ErrTooLong  = errors.New("transfer too long")
	ErrBadReply = errors.New("bad reply frame")
)

// Transactor runs one bus transaction. protocol.Slave and protocol.EventBus
// implement it.
type Transactor interface {
	Transact(w, r []byte)
}

// Open opens the serial device.
func Open(device string, baud int) (io.ReadWriteCloser, error) {
	sc := &serial.Config{Name: device, Baud: baud}
	logger.Debugf("Opening serial port [%v] at [%v] baud", device, baud)
	rwc, err := serial.OpenPort(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %v: %w", device, err)
	}
	return rwc, nil
}

// ServeConn answers request frames from rw until ctx is done or rw fails.
// Bytes that do not start a frame are skipped.
func ServeConn(ctx context.Context, rw io.ReadWriter, t Transactor) error {
	if c, ok := rw.(io.Closer); ok {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Close()
			case <-stop:
			}
		}()
	}

	br := bufio.NewReader(rw)
	w := make([]byte, MaxTransfer)
	r := make([]byte, MaxTransfer)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		marker, err := br.ReadByte()
		if err != nil {
			return ioErr(ctx, err)
		}
		if marker != RequestMarker {
			logger.Debugf("Skipping stray byte [0x%02X]", marker)
			continue
		}
		var lens [2]byte
		if _, err := io.ReadFull(br, lens[:]); err != nil {
			return ioErr(ctx, err)
		}
		wl, rl := int(lens[0]), int(lens[1])
		if wl > MaxTransfer || rl > MaxTransfer {
			logger.Warnf("Dropping oversized frame, write [%v] read [%v]", wl, rl)
			if _, err := io.CopyN(io.Discard, br, int64(wl)); err != nil {
				return ioErr(ctx, err)
			}
			// an empty reply so the master is not left waiting
			rl = 0
		} else {
			if _, err := io.ReadFull(br, w[:wl]); err != nil {
				return ioErr(ctx, err)
			}
			t.Transact(w[:wl], r[:rl])
		}

		reply := make([]byte, 0, rl+2)
		reply = append(reply, ReplyMarker, byte(rl))
		reply = append(reply, r[:rl]...)
		if _, err := rw.Write(reply); err != nil {
			return ioErr(ctx, err)
		}
	}
}

func ioErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Serve keeps the slave reachable on device, reopening the port after
// failures until ctx is done.
func Serve(ctx context.Context, device string, baud int, retry time.Duration, t Transactor) {
	logger.Infof("Serving bus bridge on [%v]", device)
	for {
		rwc, err := Open(device, baud)
		if err == nil {
			err = ServeConn(ctx, rwc, t)
			_ = rwc.Close()
		}
		if ctx.Err() != nil {
			return
		}
		logger.Errorf("Bridge on [%v] failed [%v], retrying in [%v]", device, err, retry)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

// Conn is the master end of a bridge. It implements periph's conn.Conn so
// protocol.Client works over it unchanged.
type Conn struct {
	name string
	lock sync.Mutex
	rw   io.ReadWriter
	br   *bufio.Reader
}

func NewConn(name string, rw io.ReadWriter) *Conn {
	return &Conn{name: name, rw: rw, br: bufio.NewReader(rw)}
}

func (c *Conn) String() string {
	return "bridge(" + c.name + ")"
}

func (c *Conn) Duplex() conn.Duplex {
	return conn.Half
}

func (c *Conn) Tx(w, r []byte) error {
	if len(w) > MaxTransfer || len(r) > MaxTransfer {
		return fmt.Errorf("%w: write %v read %v, max %v", ErrTooLong, len(w), len(r), MaxTransfer)
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	frame := make([]byte, 0, len(w)+3)
	frame = append(frame, RequestMarker, byte(len(w)), byte(len(r)))
	frame = append(frame, w...)
	if _, err := c.rw.Write(frame); err != nil {
		return err
	}

	var hdr [2]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		return err
	}
	if hdr[0] != ReplyMarker || int(hdr[1]) != len(r) {
		return fmt.Errorf("%w: % X", ErrBadReply, hdr)
	}
	_, err := io.ReadFull(c.br, r)
	return err
}
