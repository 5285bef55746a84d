package engine

import (
	"github.com/tidwall/btree"

	"gungnir/internal/common"
)

// stopEntry keys a parked stop by its trigger ordering: closer trigger
// prices fire first, admission sequence breaks ties.
type stopEntry struct {
	stopPrice int64
	seq       uint64
	handle    common.Handle
}

// stopBook indexes parked stops per side in firing order. Bid-side stops
// fire as the market rises, so the lowest stop price is closest; ask-side
// stops fire as it falls, so the highest is.
type stopBook struct {
	bid      *btree.BTreeG[stopEntry]
	ask      *btree.BTreeG[stopEntry]
	byHandle map[common.Handle]struct{}
}

func newStopBook() *stopBook {
	return &stopBook{
		bid: btree.NewBTreeG(func(a, b stopEntry) bool {
			if a.stopPrice != b.stopPrice {
				return a.stopPrice < b.stopPrice
			}
			return a.seq < b.seq
		}),
		ask: btree.NewBTreeG(func(a, b stopEntry) bool {
			if a.stopPrice != b.stopPrice {
				return a.stopPrice > b.stopPrice
			}
			return a.seq < b.seq
		}),
		byHandle: make(map[common.Handle]struct{}),
	}
}

func (s *stopBook) tree(side common.Side) *btree.BTreeG[stopEntry] {
	if side == Bid {
		return s.bid
	}
	return s.ask
}

func (s *stopBook) park(side common.Side, stopPrice int64, seq uint64, h common.Handle) {
	s.tree(side).Set(stopEntry{stopPrice: stopPrice, seq: seq, handle: h})
	s.byHandle[h] = struct{}{}
}

func (s *stopBook) remove(side common.Side, stopPrice int64, seq uint64, h common.Handle) {
	s.tree(side).Delete(stopEntry{stopPrice: stopPrice, seq: seq, handle: h})
	delete(s.byHandle, h)
}

func (s *stopBook) contains(h common.Handle) bool {
	_, ok := s.byHandle[h]
	return ok
}

func (s *stopBook) Len() int {
	return s.bid.Len() + s.ask.Len()
}

// each visits every parked stop, bid side first, in firing order.
func (s *stopBook) each(fn func(stopEntry)) {
	s.bid.Scan(func(e stopEntry) bool { fn(e); return true })
	s.ask.Scan(func(e stopEntry) bool { fn(e); return true })
}

// firstFired returns the closest fired stop on one side given the trigger
// thresholds, or false if none fire.
func (s *stopBook) firstFired(side common.Side, threshold int64, ok bool) (stopEntry, bool) {
	if !ok {
		return stopEntry{}, false
	}
	entry, found := s.tree(side).Min()
	if !found {
		return stopEntry{}, false
	}
	if side == Bid {
		if entry.stopPrice <= threshold {
			return entry, true
		}
	} else {
		if entry.stopPrice >= threshold {
			return entry, true
		}
	}
	return stopEntry{}, false
}

// triggerStops activates every stop whose condition has been crossed by the
// last trade or the current best quotes. A fired stop re-enters the matcher
// as its limit or market leg and may itself trade and move the market, so
// the scan loops to a fixed point, bounded by the number of stops resident
// at pass start to prevent livelock.
func (b *OrderBook) triggerStops(ev *common.EventBuffer) {
	budget := b.stops.Len()
	for budget > 0 {
		entry, side, ok := b.nextFiredStop()
		if !ok {
			return
		}
		budget--

		order := *b.byHandle.Get(entry.handle)
		b.stops.remove(side, entry.stopPrice, entry.seq, entry.handle)
		delete(b.byOrderID, orderKey{order.UID, order.OrderID})
		b.byHandle.Remove(entry.handle)

		ev.Append(common.Event{
			Type:      common.EventActivate,
			UID:       order.UID,
			OrderID:   order.OrderID,
			Timestamp: b.clock,
		})

		b.matchAndRest(ev, taker{
			uid:          order.UID,
			orderID:      order.OrderID,
			side:         order.Side,
			orderType:    order.OrderType,
			price:        order.Price,
			reservePrice: order.ReservePrice,
			stopPrice:    order.StopPrice,
			size:         order.Remaining,
			visibleSize:  order.VisibleSize,
			expireTime:   order.ExpireTime,
		})
	}
}

// nextFiredStop picks the closest fired bid-side stop, or, when no bid-side
// stop fires, the closest fired ask-side stop. A bid-side
// stop at Sp fires when lastTrade >= Sp or bestAsk >= Sp; an ask-side stop
// when lastTrade <= Sp or bestBid <= Sp.
func (b *OrderBook) nextFiredStop() (stopEntry, common.Side, bool) {
	bidThreshold, bidOk := b.bidStopThreshold()
	if entry, ok := b.stops.firstFired(Bid, bidThreshold, bidOk); ok {
		return entry, Bid, true
	}
	askThreshold, askOk := b.askStopThreshold()
	if entry, ok := b.stops.firstFired(Ask, askThreshold, askOk); ok {
		return entry, Ask, true
	}
	return stopEntry{}, Bid, false
}

// bidStopThreshold is the highest reference price available to bid-side
// triggers: a stop fires when its price is at or below it.
func (b *OrderBook) bidStopThreshold() (int64, bool) {
	threshold, ok := int64(0), false
	if b.hasLastTrade {
		threshold, ok = b.lastTradePrice, true
	}
	if ask, has := b.asks.bestPrice(); has && (!ok || ask > threshold) {
		threshold, ok = ask, true
	}
	return threshold, ok
}

// askStopThreshold is the lowest reference price available to ask-side
// triggers: a stop fires when its price is at or above it.
func (b *OrderBook) askStopThreshold() (int64, bool) {
	threshold, ok := int64(0), false
	if b.hasLastTrade {
		threshold, ok = b.lastTradePrice, true
	}
	if bid, has := b.bids.bestPrice(); has && (!ok || bid < threshold) {
		threshold, ok = bid, true
	}
	return threshold, ok
}
