package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungnir/internal/common"
)

func stopLimit(b *OrderBook, ts, uid, oid uint64, side common.Side, price, stop int64, size uint64) *common.OrderCommand {
	action := common.ActionBid
	if side == Ask {
		action = common.ActionAsk
	}
	cmd := &common.OrderCommand{
		UID:       uid,
		OrderID:   oid,
		Symbol:    1,
		Action:    action,
		OrderType: common.StopLimit,
		Side:      side,
		Price:     price,
		StopPrice: stop,
		Size:      size,
		Timestamp: ts,
	}
	b.Process(cmd)
	return cmd
}

func TestStopActivationOnTrade(t *testing.T) {
	book := newTestBook()

	// 1. A resting ask at 105 and a parked buy stop triggered at 100.
	limit(book, 1, 1, 1, Ask, common.GTC, 105, 10)
	parked := stopLimit(book, 2, 2, 2, Bid, 110, 100, 5)
	assert.Empty(t, parked.Events)
	assert.Equal(t, 1, book.StopCount())
	// Parked stops are not on the main book.
	assert.Empty(t, book.Bids())

	// 2. A deeper ask rests; quotes move but nothing fires.
	limit(book, 3, 1, 3, Ask, common.GTC, 99, 1)
	assert.Equal(t, 1, book.StopCount())

	// 3. An IOC bid prints at 99; the ask side snaps back to 105, which
	// crosses the stop's trigger.
	taker := limit(book, 4, 3, 4, Bid, common.IOC, 105, 1)

	got := trades(taker.Events)
	require.Len(t, got, 2)
	assert.Equal(t, int64(99), got[0].Price)

	activate, ok := findEvent(taker.Events, common.EventActivate)
	require.True(t, ok)
	assert.Equal(t, uint64(2), activate.OrderID)

	// 4. The activated stop traded against the 105 ask.
	assert.Equal(t, int64(105), got[1].Price)
	assert.Equal(t, uint64(5), got[1].Size)
	assert.Equal(t, uint64(2), got[1].TakerOrderID)
	assert.Equal(t, uint64(1), got[1].MakerOrderID)

	// Activate precedes its resulting trade in the buffer.
	var activateIdx, tradeIdx int
	for i, e := range taker.Events {
		switch {
		case e.Type == common.EventActivate:
			activateIdx = i
		case e.Type == common.EventTrade && e.Price == 105:
			tradeIdx = i
		}
	}
	assert.Less(t, activateIdx, tradeIdx)

	assert.Equal(t, 0, book.StopCount())
	checkInvariants(t, book)
}

func TestStopAdmittedTriggeredImmediately(t *testing.T) {
	book := newTestBook()

	// Print a last trade at 100.
	limit(book, 1, 1, 1, Ask, common.GTC, 100, 5)
	limit(book, 2, 2, 2, Bid, common.IOC, 100, 5)

	// A buy stop at 95 is already satisfied by the last trade: it matches
	// immediately instead of parking.
	limit(book, 3, 1, 3, Ask, common.GTC, 102, 10)
	cmd := stopLimit(book, 4, 3, 4, Bid, 103, 95, 4)

	got := trades(cmd.Events)
	require.Len(t, got, 1)
	assert.Equal(t, int64(102), got[0].Price)
	assert.Equal(t, uint64(4), got[0].Size)
	assert.Equal(t, 0, book.StopCount())
	checkInvariants(t, book)
}

func TestStopMarketResidualCancelled(t *testing.T) {
	book := newTestBook()

	// Ask 100(3) is all the liquidity there is.
	limit(book, 1, 1, 1, Ask, common.GTC, 100, 3)
	limit(book, 2, 2, 2, Bid, common.IOC, 100, 1)

	// A stop-market buy for 10 with its trigger already crossed sweeps
	// what is left and cancels the remainder.
	cmd := &common.OrderCommand{
		UID: 3, OrderID: 3, Symbol: 1,
		Action:    common.ActionBid,
		OrderType: common.StopMarket,
		Side:      Bid,
		StopPrice: 95,
		Size:      10,
		Timestamp: 3,
	}
	book.Process(cmd)

	got := trades(cmd.Events)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].Size)

	cancel, ok := findEvent(cmd.Events, common.EventCancel)
	require.True(t, ok)
	assert.Equal(t, common.ReasonIOCUnfilled, cancel.Reason)
	assert.Equal(t, uint64(8), cancel.Remaining)
	assert.Empty(t, book.Bids())
	checkInvariants(t, book)
}

func TestStopMarketReservePriceCapsSweep(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Ask, common.GTC, 100, 5)
	limit(book, 2, 1, 2, Ask, common.GTC, 120, 5)
	limit(book, 3, 2, 3, Bid, common.IOC, 100, 1)

	// Reserve price 110 stops the sweep before the 120 level.
	cmd := &common.OrderCommand{
		UID: 3, OrderID: 4, Symbol: 1,
		Action:       common.ActionBid,
		OrderType:    common.StopMarket,
		Side:         Bid,
		StopPrice:    95,
		ReservePrice: 110,
		Size:         10,
		Timestamp:    4,
	}
	book.Process(cmd)

	got := trades(cmd.Events)
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].Price)
	assert.Equal(t, uint64(4), got[0].Size)

	cancel, ok := findEvent(cmd.Events, common.EventCancel)
	require.True(t, ok)
	assert.Equal(t, uint64(6), cancel.Remaining)

	// The 120 ask is untouched.
	asks := book.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, int64(120), asks[0].Price())
	checkInvariants(t, book)
}

func TestStopCancelWhileParked(t *testing.T) {
	book := newTestBook()

	stopLimit(book, 1, 1, 1, Bid, 110, 100, 5)
	assert.Equal(t, 1, book.StopCount())

	cancel := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 1,
		Action:    common.ActionCancel,
		Timestamp: 2,
	}
	book.Process(cancel)

	ev, ok := findEvent(cancel.Events, common.EventCancel)
	require.True(t, ok)
	assert.Equal(t, common.ReasonUserRequest, ev.Reason)
	assert.Equal(t, 0, book.StopCount())
	assert.Equal(t, 0, book.RestingCount())
}

func TestStopsFireClosestFirst(t *testing.T) {
	book := newTestBook()

	// Liquidity for both stops to take.
	limit(book, 1, 1, 1, Ask, common.GTC, 105, 20)

	// Two parked buy stops: triggers at 103 and 101. Parking runs no
	// trigger scan, so both stay pending despite the 105 ask.
	stopLimit(book, 2, 2, 2, Bid, 106, 103, 5)
	stopLimit(book, 3, 3, 3, Bid, 106, 101, 5)
	assert.Equal(t, 2, book.StopCount())

	// A print at 105 crosses both triggers; the closer one (101)
	// activates first.
	taker := limit(book, 4, 4, 4, Bid, common.IOC, 105, 1)

	var activations []uint64
	for _, e := range taker.Events {
		if e.Type == common.EventActivate {
			activations = append(activations, e.OrderID)
		}
	}
	require.Len(t, activations, 2)
	assert.Equal(t, uint64(3), activations[0])
	assert.Equal(t, uint64(2), activations[1])

	got := trades(taker.Events)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(1), got[0].Size)
	assert.Equal(t, uint64(5), got[1].Size)
	assert.Equal(t, uint64(5), got[2].Size)
	assert.Equal(t, 0, book.StopCount())
	checkInvariants(t, book)
}

func TestStopChainReachesFixedPoint(t *testing.T) {
	book := newTestBook()

	// Stop A triggers at 101; its fill prints 105, which in turn crosses
	// stop B's trigger at 104.
	limit(book, 1, 1, 1, Ask, common.GTC, 105, 5)
	limit(book, 2, 1, 2, Ask, common.GTC, 107, 5)
	stopLimit(book, 3, 2, 3, Bid, 105, 101, 5)
	stopLimit(book, 4, 3, 4, Bid, 107, 104, 5)

	// An ask resting at 102 moves the best quote under stop A's trigger
	// and starts the chain.
	mover := limit(book, 5, 4, 5, Ask, common.GTC, 102, 1)

	got := trades(mover.Events)
	require.Len(t, got, 4)
	assert.Equal(t, int64(102), got[0].Price)
	assert.Equal(t, int64(105), got[1].Price)
	assert.Equal(t, int64(105), got[2].Price)
	assert.Equal(t, int64(107), got[3].Price)

	var activations []uint64
	for _, e := range mover.Events {
		if e.Type == common.EventActivate {
			activations = append(activations, e.OrderID)
		}
	}
	require.Len(t, activations, 2)
	assert.Equal(t, uint64(3), activations[0])
	assert.Equal(t, uint64(4), activations[1])
	assert.Equal(t, 0, book.StopCount())
	checkInvariants(t, book)
}
