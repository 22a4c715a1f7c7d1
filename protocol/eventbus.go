package protocol

import (
	"context"
	"sync"
)

// EventBus feeds transactions to a Slave running Serve on another goroutine,
// one event per bus callback.
type EventBus struct {
	ctx    context.Context
	lock   sync.Mutex
	events chan<- Event
	reply  chan byte
}

// NewEventBus sends on events until ctx is done. Transactions after that read
// the idle bus byte.
func NewEventBus(ctx context.Context, events chan<- Event) *EventBus {
	return &EventBus{ctx: ctx, events: events, reply: make(chan byte, 1)}
}

func (b *EventBus) Transact(w, r []byte) {
	b.lock.Lock()
	defer b.lock.Unlock()

	// a reply left over from a transaction cut short by ctx
	select {
	case <-b.reply:
	default:
	}
	for i := range r {
		r[i] = IdleByte
	}
	for _, v := range w {
		if !b.send(Event{Kind: ReceiveByte, Data: v}) {
			return
		}
	}
	for i := range r {
		if !b.send(Event{Kind: RequestByte, Reply: b.reply}) {
			return
		}
		select {
		case r[i] = <-b.reply:
		case <-b.ctx.Done():
			return
		}
	}
	b.send(Event{Kind: TransactionEnd})
}

func (b *EventBus) send(ev Event) bool {
	select {
	case b.events <- ev:
		return true
	case <-b.ctx.Done():
		return false
	}
}
