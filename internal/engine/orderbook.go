package engine

import (
	"gungnir/internal/common"
	"gungnir/internal/pool"
)

// Side aliases for readability within the engine.
const (
	Bid = common.Bid
	Ask = common.Ask
)

// nanosPerDay bounds a trading day on the nanosecond logical clock.
const nanosPerDay = 24 * 60 * 60 * 1_000_000_000

type orderKey struct {
	uid     uint64
	orderID uint64
}

// OrderBook is the per-symbol matching book: a pair of side indices, the
// order pool, the (uid, orderID) lookup, the stop table and the expiry
// queue. It is single-threaded by contract; every command is processed to
// completion, events included, before the next is admitted.
type OrderBook struct {
	spec common.SymbolSpec

	bids *sideIndex
	asks *sideIndex

	byHandle  *pool.Pool
	byOrderID map[orderKey]common.Handle

	stops  *stopBook
	expiry expiryQueue

	lastTradePrice int64
	hasLastTrade   bool

	clock uint64
	seq   uint64

	// rejectSelfTrade cancels the taker's remainder instead of letting it
	// trade against the same uid's resting order.
	rejectSelfTrade bool
}

type BookOption func(*OrderBook)

// WithSelfTradeReject enables the single-boolean self-trade prevention
// mode: the incoming taker is cancelled before any self-fill.
func WithSelfTradeReject() BookOption {
	return func(b *OrderBook) { b.rejectSelfTrade = true }
}

func NewOrderBook(spec common.SymbolSpec, capacity int, opts ...BookOption) *OrderBook {
	b := &OrderBook{
		spec:      spec,
		bids:      newSideIndex(Bid),
		asks:      newSideIndex(Ask),
		byHandle:  pool.New(capacity),
		byOrderID: make(map[orderKey]common.Handle),
		stops:     newStopBook(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OrderBook) Spec() common.SymbolSpec { return b.spec }
func (b *OrderBook) Clock() uint64           { return b.clock }
func (b *OrderBook) Seq() uint64             { return b.seq }

func (b *OrderBook) LastTradePrice() (int64, bool) {
	return b.lastTradePrice, b.hasLastTrade
}

func (b *OrderBook) BestBid() (int64, bool) { return b.bids.bestPrice() }
func (b *OrderBook) BestAsk() (int64, bool) { return b.asks.bestPrice() }

// Bids returns the bid levels best first.
func (b *OrderBook) Bids() []*PriceLevel { return b.bids.Items() }

// Asks returns the ask levels best first.
func (b *OrderBook) Asks() []*PriceLevel { return b.asks.Items() }

// Order returns the live resting order at h, if any.
func (b *OrderBook) Order(h common.Handle) *pool.RestingOrder {
	return b.byHandle.Get(h)
}

// Lookup resolves a (uid, orderID) pair to its live handle.
func (b *OrderBook) Lookup(uid, orderID uint64) (common.Handle, bool) {
	h, ok := b.byOrderID[orderKey{uid, orderID}]
	return h, ok
}

// RestingCount is the number of live pool slots, parked stops included.
func (b *OrderBook) RestingCount() int { return b.byHandle.Len() }

// StopCount is the number of parked stop orders.
func (b *OrderBook) StopCount() int { return b.stops.Len() }

func (b *OrderBook) side(s common.Side) *sideIndex {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) nextSeq() uint64 {
	b.seq++
	return b.seq
}

// Process runs one command to completion against this book, appending every
// resulting event to cmd.Events. The book is mutated atomically with
// respect to the command: errors surface as Reject events, never as partial
// state.
func (b *OrderBook) Process(cmd *common.OrderCommand) {
	if cmd.Symbol != b.spec.SymbolID {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonSymbolMismatch)
		return
	}

	if cmd.Timestamp > b.clock {
		b.clock = cmd.Timestamp
	}

	bestBid, hadBid := b.bids.bestPrice()
	bestAsk, hadAsk := b.asks.bestPrice()
	trades := cmd.Events.Trades()

	// Stale time-bounded orders leave before the command is admitted.
	b.sweepExpired(&cmd.Events)

	switch cmd.Action {
	case common.ActionBid, common.ActionAsk:
		b.submit(cmd)
	case common.ActionCancel:
		b.cancel(cmd)
	case common.ActionMove:
		b.move(cmd)
	case common.ActionReduce:
		b.reduce(cmd)
	default:
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonUnknownOrder)
		return
	}

	// A trade print or any best-quote movement can cross pending stop
	// triggers; cancels and reduces move quotes too.
	nowBid, hasBid := b.bids.bestPrice()
	nowAsk, hasAsk := b.asks.bestPrice()
	if cmd.Events.Trades() > trades ||
		hadBid != hasBid || hadAsk != hasAsk ||
		bestBid != nowBid || bestAsk != nowAsk {
		b.triggerStops(&cmd.Events)
	}
}

// submit admits a Bid/Ask command: validation, duplicate check, stop
// parking, then the matching pipeline.
func (b *OrderBook) submit(cmd *common.OrderCommand) {
	side := Bid
	if cmd.Action == common.ActionAsk {
		side = Ask
	}

	if reason, ok := validate(cmd); !ok {
		b.reject(cmd, cmd.UID, cmd.OrderID, reason)
		return
	}

	key := orderKey{cmd.UID, cmd.OrderID}
	if _, dup := b.byOrderID[key]; dup {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonDuplicateOrderID)
		return
	}

	t := taker{
		uid:          cmd.UID,
		orderID:      cmd.OrderID,
		side:         side,
		orderType:    cmd.OrderType,
		price:        cmd.Price,
		reservePrice: cmd.ReservePrice,
		stopPrice:    cmd.StopPrice,
		size:         cmd.Size,
		visibleSize:  cmd.VisibleSize,
		expireTime:   cmd.ExpireTime,
	}

	// Untriggered stops never touch the main book: they park in the stop
	// table until a trade crosses their trigger. Only the last trade is
	// consulted at admission; the quote leg of the trigger applies from
	// the first post-pass scan onwards.
	if cmd.OrderType.IsStop() && !b.stopSatisfiedByLastTrade(side, cmd.StopPrice) {
		b.parkStop(&cmd.Events, t)
		return
	}

	b.matchAndRest(&cmd.Events, t)
}

// stopSatisfiedByLastTrade is the admission-time trigger test.
func (b *OrderBook) stopSatisfiedByLastTrade(side common.Side, stopPrice int64) bool {
	if !b.hasLastTrade {
		return false
	}
	if side == Bid {
		return b.lastTradePrice >= stopPrice
	}
	return b.lastTradePrice <= stopPrice
}

// cancel removes a resting or parked order at the user's request.
func (b *OrderBook) cancel(cmd *common.OrderCommand) {
	key := orderKey{cmd.UID, cmd.OrderID}
	h, ok := b.byOrderID[key]
	if !ok {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonUnknownOrder)
		return
	}

	order := b.byHandle.Get(h)
	remaining := order.Total()
	b.unlink(h, order)
	cmd.Events.Append(common.Event{
		Type:      common.EventCancel,
		UID:       cmd.UID,
		OrderID:   cmd.OrderID,
		Reason:    common.ReasonUserRequest,
		Remaining: remaining,
		Timestamp: b.clock,
	})
}

// move is an atomic remove + resubmit at the current clock: the order loses
// its queue priority and the new submission runs the full matching
// pipeline, iceberg reserve included.
func (b *OrderBook) move(cmd *common.OrderCommand) {
	key := orderKey{cmd.UID, cmd.OrderID}
	h, ok := b.byOrderID[key]
	if !ok {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonUnknownOrder)
		return
	}
	if cmd.Price <= 0 {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonInvalidPrice)
		return
	}

	order := *b.byHandle.Get(h)
	b.unlink(h, b.byHandle.Get(h))

	t := taker{
		uid:          order.UID,
		orderID:      order.OrderID,
		side:         order.Side,
		orderType:    order.OrderType,
		price:        cmd.Price,
		reservePrice: order.ReservePrice,
		stopPrice:    order.StopPrice,
		size:         order.Total(),
		visibleSize:  order.VisibleSize,
		expireTime:   order.ExpireTime,
	}

	if order.OrderType.IsStop() && !b.stopSatisfiedByLastTrade(order.Side, order.StopPrice) {
		b.parkStop(&cmd.Events, t)
		return
	}
	b.matchAndRest(&cmd.Events, t)
}

// reduce shrinks an order's visible remaining size; a reduce that consumes
// the full remainder is a cancel, hidden reserve included.
func (b *OrderBook) reduce(cmd *common.OrderCommand) {
	key := orderKey{cmd.UID, cmd.OrderID}
	h, ok := b.byOrderID[key]
	if !ok {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonUnknownOrder)
		return
	}
	if cmd.Size == 0 {
		b.reject(cmd, cmd.UID, cmd.OrderID, common.ReasonInvalidSize)
		return
	}

	order := b.byHandle.Get(h)
	if cmd.Size >= order.Remaining {
		remaining := order.Total()
		b.unlink(h, order)
		cmd.Events.Append(common.Event{
			Type:      common.EventCancel,
			UID:       cmd.UID,
			OrderID:   cmd.OrderID,
			Reason:    common.ReasonUserRequest,
			Remaining: remaining,
			Timestamp: b.clock,
		})
		return
	}

	order.Remaining -= cmd.Size
	if !b.stops.contains(h) {
		if level, ok := b.side(order.Side).get(order.Price); ok {
			level.reduce(cmd.Size)
		}
	}
	cmd.Events.Append(common.Event{
		Type:      common.EventCancel,
		UID:       cmd.UID,
		OrderID:   cmd.OrderID,
		Reason:    common.ReasonUserRequest,
		Remaining: cmd.Size,
		Timestamp: b.clock,
	})
}

// unlink removes an order from wherever it lives (level queue or stop
// table), the lookup map, and the pool. Emits nothing.
func (b *OrderBook) unlink(h common.Handle, order *pool.RestingOrder) {
	if b.stops.contains(h) {
		b.stops.remove(order.Side, order.StopPrice, order.Seq, h)
	} else {
		side := b.side(order.Side)
		if level, ok := side.get(order.Price); ok {
			level.remove(h, order.Remaining)
			side.dropIfEmpty(level)
		}
	}
	delete(b.byOrderID, orderKey{order.UID, order.OrderID})
	b.byHandle.Remove(h)
}

func (b *OrderBook) reject(cmd *common.OrderCommand, uid, orderID uint64, reason common.Reason) {
	cmd.Events.Append(common.Event{
		Type:      common.EventReject,
		UID:       uid,
		OrderID:   orderID,
		Reason:    reason,
		Timestamp: b.clock,
	})
}

// validate applies the input-validation taxonomy before any state is read.
func validate(cmd *common.OrderCommand) (common.Reason, bool) {
	if cmd.Size == 0 {
		return common.ReasonInvalidSize, false
	}
	switch cmd.OrderType {
	case common.Iceberg:
		if cmd.VisibleSize == 0 {
			return common.ReasonInvalidSize, false
		}
		if cmd.Price <= 0 {
			return common.ReasonInvalidPrice, false
		}
	case common.StopLimit:
		if cmd.StopPrice <= 0 || cmd.Price <= 0 {
			return common.ReasonInvalidPrice, false
		}
	case common.StopMarket:
		if cmd.StopPrice <= 0 {
			return common.ReasonInvalidPrice, false
		}
	default:
		if cmd.Price <= 0 {
			return common.ReasonInvalidPrice, false
		}
	}
	return common.ReasonNone, true
}

// endOfTradingDay is the next UTC-midnight boundary of the logical clock.
func endOfTradingDay(clock uint64) uint64 {
	return (clock/nanosPerDay + 1) * nanosPerDay
}
