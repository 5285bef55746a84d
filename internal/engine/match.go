package engine

import (
	"math"

	"gungnir/internal/common"
	"gungnir/internal/pool"
)

// taker is the incoming side of one matching pass. Submissions, moves and
// stop activations all funnel through it so they share a single pipeline.
type taker struct {
	uid     uint64
	orderID uint64

	side      common.Side
	orderType common.OrderType

	price        int64
	reservePrice int64
	stopPrice    int64

	size        uint64
	visibleSize uint64
	expireTime  uint64
}

// limitPrice is the crossability bound for the walk. Market legs are capped
// by the reserve price; an unset reserve means an unbounded sweep.
func (t taker) limitPrice() int64 {
	if t.orderType == common.StopMarket {
		if t.reservePrice != 0 {
			return t.reservePrice
		}
		if t.side == Bid {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return t.price
}

// matchAndRest walks the opposing side under price-time priority, then
// disposes of any residual according to the order type.
func (b *OrderBook) matchAndRest(ev *common.EventBuffer, t taker) {
	opposing := b.side(t.side.Opposite())
	limit := t.limitPrice()

	// crossable reports whether a level at price can trade with t.
	crossable := func(price int64) bool {
		if t.side == Bid {
			return price <= limit
		}
		return price >= limit
	}

	// Type pre-checks run before any liquidity is consumed.
	switch t.orderType {
	case common.PostOnly:
		if best, ok := opposing.bestPrice(); ok && crossable(best) {
			b.rejectTaker(ev, t, common.ReasonWouldCross)
			return
		}
	case common.FOK:
		if !b.fokFillable(opposing, t.size, crossable) {
			b.rejectTaker(ev, t, common.ReasonFOKNotFillable)
			return
		}
	}

	remaining := t.size
	for remaining > 0 {
		level, ok := opposing.bestLevel()
		if !ok || !crossable(level.price) {
			break
		}

		for remaining > 0 && !level.Empty() {
			h, _ := level.peekFront()
			maker := b.byHandle.Get(h)

			if b.rejectSelfTrade && maker.UID == t.uid {
				// Self-trade prevention: the taker's remainder is
				// cancelled before any self-fill; the maker stays put.
				ev.Append(common.Event{
					Type:      common.EventCancel,
					UID:       t.uid,
					OrderID:   t.orderID,
					Reason:    common.ReasonSelfTrade,
					Remaining: remaining,
					Timestamp: b.clock,
				})
				return
			}

			qty := min(remaining, maker.Remaining)

			// The passive side sets the print.
			ev.Append(common.Event{
				Type:         common.EventTrade,
				MakerUID:     maker.UID,
				MakerOrderID: maker.OrderID,
				TakerUID:     t.uid,
				TakerOrderID: t.orderID,
				Price:        level.price,
				Size:         qty,
				Timestamp:    b.clock,
			})

			maker.Remaining -= qty
			level.reduce(qty)
			remaining -= qty
			b.lastTradePrice = level.price
			b.hasLastTrade = true

			if maker.Remaining == 0 {
				level.popFront()
				if maker.OrderType == common.Iceberg && maker.ReserveHidden > 0 {
					// Replenish the display slice from the hidden
					// reserve; the order re-queues at the back of its
					// level and loses time priority there.
					top := min(maker.VisibleSize, maker.ReserveHidden)
					maker.ReserveHidden -= top
					maker.Remaining = top
					maker.Seq = b.nextSeq()
					level.pushBack(h, top)
				} else {
					delete(b.byOrderID, orderKey{maker.UID, maker.OrderID})
					b.byHandle.Remove(h)
				}
			}
		}

		opposing.dropIfEmpty(level)
	}

	if remaining == 0 {
		return
	}

	// Residual disposal.
	switch t.orderType {
	case common.IOC, common.StopMarket:
		ev.Append(common.Event{
			Type:      common.EventCancel,
			UID:       t.uid,
			OrderID:   t.orderID,
			Reason:    common.ReasonIOCUnfilled,
			Remaining: remaining,
			Timestamp: b.clock,
		})
	case common.FOK:
		// Unreachable: the pre-scan guarantees a full fill.
	default:
		b.rest(ev, t, remaining)
	}
}

// fokFillable sums opposing visible liquidity in priority order while
// crossable. Accumulation overflow counts as non-fillable.
func (b *OrderBook) fokFillable(opposing *sideIndex, size uint64, crossable func(int64) bool) bool {
	var sum uint64
	fillable := false
	opposing.scan(func(level *PriceLevel) bool {
		if !crossable(level.price) {
			return false
		}
		if level.totalVisible > math.MaxUint64-sum {
			return false
		}
		sum += level.totalVisible
		if sum >= size {
			fillable = true
			return false
		}
		return true
	})
	return fillable
}

// rest admits the residual on the taker's own side. Only the iceberg
// display slice is enqueued and counted in the level total.
func (b *OrderBook) rest(ev *common.EventBuffer, t taker, remaining uint64) {
	visible := remaining
	var hidden uint64
	if t.orderType == common.Iceberg {
		visible = min(t.visibleSize, remaining)
		hidden = remaining - visible
	}

	expire := uint64(0)
	switch t.orderType {
	case common.Day:
		expire = endOfTradingDay(b.clock)
	case common.GTD:
		expire = t.expireTime
	}

	order := pool.RestingOrder{
		OrderID:       t.orderID,
		UID:           t.uid,
		Side:          t.side,
		OrderType:     t.orderType,
		Price:         t.price,
		StopPrice:     t.stopPrice,
		Remaining:     visible,
		ReserveHidden: hidden,
		VisibleSize:   t.visibleSize,
		ExpireTime:    expire,
		Seq:           b.nextSeq(),
	}

	h, err := b.byHandle.Insert(order)
	if err != nil {
		b.rejectTaker(ev, t, common.ReasonPoolExhausted)
		return
	}

	b.byOrderID[orderKey{t.uid, t.orderID}] = h
	b.side(t.side).getOrCreate(t.price).pushBack(h, visible)
	if expire > 0 {
		b.expiry.push(expiryEntry{
			at:      expire,
			handle:  h,
			uid:     t.uid,
			orderID: t.orderID,
		})
	}
}

// parkStop places an untriggered stop into the stop table. It is never on
// the main book until activated.
func (b *OrderBook) parkStop(ev *common.EventBuffer, t taker) {
	order := pool.RestingOrder{
		OrderID:      t.orderID,
		UID:          t.uid,
		Side:         t.side,
		OrderType:    t.orderType,
		Price:        t.price,
		StopPrice:    t.stopPrice,
		ReservePrice: t.reservePrice,
		Remaining:    t.size,
		VisibleSize:  t.visibleSize,
		ExpireTime:   t.expireTime,
		Seq:          b.nextSeq(),
	}

	h, err := b.byHandle.Insert(order)
	if err != nil {
		b.rejectTaker(ev, t, common.ReasonPoolExhausted)
		return
	}

	b.byOrderID[orderKey{t.uid, t.orderID}] = h
	b.stops.park(t.side, t.stopPrice, order.Seq, h)
}

func (b *OrderBook) rejectTaker(ev *common.EventBuffer, t taker, reason common.Reason) {
	ev.Append(common.Event{
		Type:      common.EventReject,
		UID:       t.uid,
		OrderID:   t.orderID,
		Reason:    reason,
		Timestamp: b.clock,
	})
}
