package engine

import (
	"errors"

	"gungnir/internal/pool"
)

var ErrRestoreDuplicate = errors.New("restore: duplicate order id")

// EachResting visits every order on the main book in priority order: bids
// best first, then asks best first, FIFO within each level. The visit
// order is the snapshot's canonical serialization order.
func (b *OrderBook) EachResting(fn func(pool.RestingOrder)) {
	visit := func(level *PriceLevel) bool {
		for _, h := range level.Handles() {
			fn(*b.byHandle.Get(h))
		}
		return true
	}
	b.bids.scan(visit)
	b.asks.scan(visit)
}

// EachStop visits every parked stop, bid side first, in firing order.
func (b *OrderBook) EachStop(fn func(pool.RestingOrder)) {
	b.stops.each(func(e stopEntry) {
		fn(*b.byHandle.Get(e.handle))
	})
}

// RestoreClock reinstates the book's clocks and last-trade marker from a
// snapshot. Only valid on an empty book.
func (b *OrderBook) RestoreClock(clock, seq uint64, lastTrade int64, hasLastTrade bool) {
	b.clock = clock
	b.seq = seq
	b.lastTradePrice = lastTrade
	b.hasLastTrade = hasLastTrade
}

// RestoreResting re-admits a snapshotted order onto the main book exactly
// as serialized: same seq, same visible/hidden split, same deadline.
// Orders must be restored in EachResting order so level queues rebuild
// FIFO-identical.
func (b *OrderBook) RestoreResting(order pool.RestingOrder) error {
	key := orderKey{order.UID, order.OrderID}
	if _, dup := b.byOrderID[key]; dup {
		return ErrRestoreDuplicate
	}

	h, err := b.byHandle.Insert(order)
	if err != nil {
		return err
	}

	b.byOrderID[key] = h
	b.side(order.Side).getOrCreate(order.Price).pushBack(h, order.Remaining)
	if order.ExpireTime > 0 {
		b.expiry.push(expiryEntry{
			at:      order.ExpireTime,
			handle:  h,
			uid:     order.UID,
			orderID: order.OrderID,
		})
	}
	if order.Seq > b.seq {
		b.seq = order.Seq
	}
	return nil
}

// RestoreStop re-parks a snapshotted stop order.
func (b *OrderBook) RestoreStop(order pool.RestingOrder) error {
	key := orderKey{order.UID, order.OrderID}
	if _, dup := b.byOrderID[key]; dup {
		return ErrRestoreDuplicate
	}

	h, err := b.byHandle.Insert(order)
	if err != nil {
		return err
	}

	b.byOrderID[key] = h
	b.stops.park(order.Side, order.StopPrice, order.Seq, h)
	if order.Seq > b.seq {
		b.seq = order.Seq
	}
	return nil
}
