package protocol

import "periph.io/x/conn/v3"

// Transactor runs one complete bus transaction. Slave and EventBus
// implement it.
type Transactor interface {
	Transact(w, r []byte)
}

// Loopback connects a Client straight to a slave in the same process.
type Loopback struct {
	t Transactor
}

func NewLoopback(t Transactor) *Loopback {
	return &Loopback{t: t}
}

func (l *Loopback) String() string {
	return "loopback"
}

func (l *Loopback) Duplex() conn.Duplex {
	return conn.Half
}

func (l *Loopback) Tx(w, r []byte) error {
	l.t.Transact(w, r)
	return nil
}
