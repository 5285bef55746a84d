// Package pool provides the slab allocator backing all resting orders.
// Slots are pre-allocated up front and addressed by stable integer handles,
// so the book never chases heap pointers on the hot path.
package pool

import (
	"errors"

	"gungnir/internal/common"
)

var ErrPoolExhausted = errors.New("order pool exhausted")

// RestingOrder is the pool-resident state of an order sitting on the book
// or parked in the stop table.
type RestingOrder struct {
	Handle  common.Handle
	OrderID uint64
	UID     uint64

	Side      common.Side
	OrderType common.OrderType

	Price        int64
	StopPrice    int64
	ReservePrice int64

	// Remaining is the visible portion actually queued at a price level.
	// ReserveHidden is the iceberg remainder not yet exposed; VisibleSize is
	// the display slice it replenishes to.
	Remaining     uint64
	ReserveHidden uint64
	VisibleSize   uint64

	ExpireTime uint64

	// Seq is the monotone admission sequence used for FIFO tie-breaks
	// within a price level.
	Seq uint64
}

// Total is the full outstanding quantity, hidden reserve included.
func (o *RestingOrder) Total() uint64 {
	return o.Remaining + o.ReserveHidden
}

// Pool is a fixed-capacity slab of resting orders. Freed slots are recycled
// through a free list; a slot's contents are only meaningful while live.
type Pool struct {
	slots []RestingOrder
	live  []bool
	free  []common.Handle
	next  common.Handle
	count int
}

func New(capacity int) *Pool {
	return &Pool{
		slots: make([]RestingOrder, capacity),
		live:  make([]bool, capacity),
		free:  make([]common.Handle, 0, capacity/4),
	}
}

// Insert places an order into a free slot and returns its handle. The
// order's Handle field is written through. Fails with ErrPoolExhausted when
// every slot is live.
func (p *Pool) Insert(order RestingOrder) (common.Handle, error) {
	var h common.Handle
	if n := len(p.free); n > 0 {
		h = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if int(p.next) >= len(p.slots) {
			return common.HandleNone, ErrPoolExhausted
		}
		h = p.next
		p.next++
	}

	order.Handle = h
	p.slots[h] = order
	p.live[h] = true
	p.count++
	return h, nil
}

// Get returns the live order at h, or nil if the slot is dead or out of
// range. Callers must not retain the pointer across a Remove.
func (p *Pool) Get(h common.Handle) *RestingOrder {
	if int(h) >= len(p.slots) || !p.live[h] {
		return nil
	}
	return &p.slots[h]
}

// Remove frees the slot, returning it to the free list. Removing a dead
// handle is a no-op.
func (p *Pool) Remove(h common.Handle) {
	if int(h) >= len(p.slots) || !p.live[h] {
		return
	}
	p.live[h] = false
	p.slots[h] = RestingOrder{}
	p.free = append(p.free, h)
	p.count--
}

// Len is the number of live orders.
func (p *Pool) Len() int {
	return p.count
}

// Cap is the total slot capacity.
func (p *Pool) Cap() int {
	return len(p.slots)
}

// Each visits every live order. Mutating the visited order is allowed;
// inserting or removing during iteration is not.
func (p *Pool) Each(fn func(*RestingOrder)) {
	for i := range p.slots {
		if p.live[i] {
			fn(&p.slots[i])
		}
	}
}
