package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungnir/internal/common"
)

func TestCancelRestoresPreAdmissionState(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Ask, common.GTC, 100, 10)
	limit(book, 2, 2, 2, Ask, common.GTC, 100, 5)

	cancel := &common.OrderCommand{
		UID: 2, OrderID: 2, Symbol: 1,
		Action:    common.ActionCancel,
		Timestamp: 3,
	}
	book.Process(cancel)

	ev, ok := findEvent(cancel.Events, common.EventCancel)
	require.True(t, ok)
	assert.Equal(t, common.ReasonUserRequest, ev.Reason)
	assert.Equal(t, uint64(5), ev.Remaining)

	// Back to the single-order level.
	asks := book.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, uint64(10), asks[0].TotalVisible())
	assert.Equal(t, 1, asks[0].Len())

	_, found := book.Lookup(2, 2)
	assert.False(t, found)
	checkInvariants(t, book)
}

func TestCancelUnknownOrderRejected(t *testing.T) {
	book := newTestBook()

	cancel := &common.OrderCommand{
		UID: 7, OrderID: 9, Symbol: 1,
		Action:    common.ActionCancel,
		Timestamp: 1,
	}
	book.Process(cancel)

	reject, ok := findEvent(cancel.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonUnknownOrder, reject.Reason)
}

func TestCancelEmptiesLevel(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Bid, common.GTC, 99, 10)
	cancel := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 1,
		Action:    common.ActionCancel,
		Timestamp: 2,
	}
	book.Process(cancel)

	assert.Empty(t, book.Bids())
	_, hasBid := book.BestBid()
	assert.False(t, hasBid)
	checkInvariants(t, book)
}

func TestMoveResetsPriorityAndRematches(t *testing.T) {
	book := newTestBook()

	// Two bids queued at 99; moving the first one re-admits it behind any
	// order already at the destination price.
	limit(book, 1, 1, 1, Bid, common.GTC, 99, 10)
	limit(book, 2, 2, 2, Bid, common.GTC, 99, 20)

	move := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 1,
		Action:    common.ActionMove,
		Price:     99,
		Timestamp: 3,
	}
	book.Process(move)

	bids := book.Bids()
	require.Len(t, bids, 1)
	require.Equal(t, 2, bids[0].Len())
	front := book.Order(bids[0].Handles()[0])
	assert.Equal(t, uint64(2), front.OrderID)
	back := book.Order(bids[0].Handles()[1])
	assert.Equal(t, uint64(1), back.OrderID)
	checkInvariants(t, book)
}

func TestMoveCrossesThroughMatching(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Ask, common.GTC, 105, 10)
	limit(book, 2, 2, 2, Bid, common.GTC, 100, 10)

	// Moving the bid up to 105 runs the full matching pipeline.
	move := &common.OrderCommand{
		UID: 2, OrderID: 2, Symbol: 1,
		Action:    common.ActionMove,
		Price:     105,
		Timestamp: 3,
	}
	book.Process(move)

	got := trades(move.Events)
	require.Len(t, got, 1)
	assert.Equal(t, int64(105), got[0].Price)
	assert.Equal(t, uint64(10), got[0].Size)
	assert.Empty(t, book.Asks())
	assert.Empty(t, book.Bids())
	checkInvariants(t, book)
}

func TestMoveUnknownOrderRejected(t *testing.T) {
	book := newTestBook()

	move := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 1,
		Action:    common.ActionMove,
		Price:     100,
		Timestamp: 1,
	}
	book.Process(move)

	reject, ok := findEvent(move.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonUnknownOrder, reject.Reason)
}

func TestReducePartial(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Ask, common.GTC, 100, 10)
	reduce := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 1,
		Action:    common.ActionReduce,
		Size:      4,
		Timestamp: 2,
	}
	book.Process(reduce)

	ev, ok := findEvent(reduce.Events, common.EventCancel)
	require.True(t, ok)
	assert.Equal(t, uint64(4), ev.Remaining)

	h, _ := book.Lookup(1, 1)
	assert.Equal(t, uint64(6), book.Order(h).Remaining)
	asks := book.Asks()
	require.Len(t, asks, 1)
	assert.Equal(t, uint64(6), asks[0].TotalVisible())
	checkInvariants(t, book)
}

func TestReduceToZeroCancels(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Ask, common.GTC, 100, 10)
	reduce := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 1,
		Action:    common.ActionReduce,
		Size:      10,
		Timestamp: 2,
	}
	book.Process(reduce)

	ev, ok := findEvent(reduce.Events, common.EventCancel)
	require.True(t, ok)
	assert.Equal(t, uint64(10), ev.Remaining)
	assert.Empty(t, book.Asks())
	_, found := book.Lookup(1, 1)
	assert.False(t, found)
	checkInvariants(t, book)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	book := newTestBook()

	limit(book, 1, 1, 1, Ask, common.GTC, 100, 10)
	cmd := limit(book, 2, 1, 1, Ask, common.GTC, 101, 5)

	reject, ok := findEvent(cmd.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonDuplicateOrderID, reject.Reason)

	// Only the original order is on the book.
	assert.Equal(t, 1, book.RestingCount())
	checkInvariants(t, book)
}

func TestValidationRejects(t *testing.T) {
	book := newTestBook()

	// Zero size.
	cmd := limit(book, 1, 1, 1, Bid, common.GTC, 100, 0)
	reject, ok := findEvent(cmd.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonInvalidSize, reject.Reason)

	// Non-positive limit price.
	cmd = limit(book, 2, 1, 2, Bid, common.GTC, 0, 10)
	reject, ok = findEvent(cmd.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonInvalidPrice, reject.Reason)

	// Iceberg without a display slice.
	iceberg := &common.OrderCommand{
		UID: 1, OrderID: 3, Symbol: 1,
		Action:    common.ActionAsk,
		OrderType: common.Iceberg,
		Side:      Ask,
		Price:     100,
		Size:      50,
		Timestamp: 3,
	}
	book.Process(iceberg)
	reject, ok = findEvent(iceberg.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonInvalidSize, reject.Reason)

	// Stop order without a trigger price.
	stop := &common.OrderCommand{
		UID: 1, OrderID: 4, Symbol: 1,
		Action:    common.ActionBid,
		OrderType: common.StopLimit,
		Side:      Bid,
		Price:     100,
		Size:      50,
		Timestamp: 4,
	}
	book.Process(stop)
	reject, ok = findEvent(stop.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonInvalidPrice, reject.Reason)

	assert.Equal(t, 0, book.RestingCount())
}

func TestSymbolMismatchRejected(t *testing.T) {
	book := newTestBook()

	cmd := &common.OrderCommand{
		UID: 1, OrderID: 1, Symbol: 42,
		Action:    common.ActionBid,
		OrderType: common.GTC,
		Side:      Bid,
		Price:     100,
		Size:      10,
		Timestamp: 1,
	}
	book.Process(cmd)

	reject, ok := findEvent(cmd.Events, common.EventReject)
	require.True(t, ok)
	assert.Equal(t, common.ReasonSymbolMismatch, reject.Reason)
}

func TestClockAdvancesMonotonically(t *testing.T) {
	book := newTestBook()

	limit(book, 100, 1, 1, Ask, common.GTC, 100, 10)
	assert.Equal(t, uint64(100), book.Clock())

	// An out-of-order timestamp never rewinds the clock.
	limit(book, 50, 1, 2, Ask, common.GTC, 101, 10)
	assert.Equal(t, uint64(100), book.Clock())

	limit(book, 200, 1, 3, Ask, common.GTC, 102, 10)
	assert.Equal(t, uint64(200), book.Clock())
}
