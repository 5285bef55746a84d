package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gungnir/internal/common"
)

func TestNewOrderWireRoundTrip(t *testing.T) {
	sent := NewOrderMessage{
		Symbol:       1,
		UID:          7,
		OrderID:      42,
		Side:         common.Bid,
		OrderType:    common.Iceberg,
		Price:        105,
		ReservePrice: 110,
		StopPrice:    0,
		Size:         1000,
		VisibleSize:  100,
		ExpireTime:   0,
	}

	parsed, err := parseMessage(SerializeNewOrder(sent))
	require.NoError(t, err)
	msg, ok := parsed.(NewOrderMessage)
	require.True(t, ok)
	sent.BaseMessage = BaseMessage{TypeOf: NewOrder}
	assert.Equal(t, sent, msg)

	cmd := msg.Command(99)
	assert.Equal(t, common.ActionBid, cmd.Action)
	assert.Equal(t, common.Iceberg, cmd.OrderType)
	assert.Equal(t, uint64(99), cmd.Timestamp)
	assert.Equal(t, uint64(1000), cmd.Size)
}

func TestCancelMoveReduceWireRoundTrip(t *testing.T) {
	parsed, err := parseMessage(SerializeCancelOrder(CancelOrderMessage{Symbol: 1, UID: 7, OrderID: 42}))
	require.NoError(t, err)
	cancel, ok := parsed.(CancelOrderMessage)
	require.True(t, ok)
	assert.Equal(t, common.ActionCancel, cancel.Command(1).Action)

	parsed, err = parseMessage(SerializeMoveOrder(MoveOrderMessage{Symbol: 1, UID: 7, OrderID: 42, NewPrice: 101}))
	require.NoError(t, err)
	move, ok := parsed.(MoveOrderMessage)
	require.True(t, ok)
	cmd := move.Command(1)
	assert.Equal(t, common.ActionMove, cmd.Action)
	assert.Equal(t, int64(101), cmd.Price)

	parsed, err = parseMessage(SerializeReduceOrder(ReduceOrderMessage{Symbol: 1, UID: 7, OrderID: 42, Delta: 5}))
	require.NoError(t, err)
	reduce, ok := parsed.(ReduceOrderMessage)
	require.True(t, ok)
	cmd = reduce.Command(1)
	assert.Equal(t, common.ActionReduce, cmd.Action)
	assert.Equal(t, uint64(5), cmd.Size)
}

func TestReportWireRoundTrip(t *testing.T) {
	ev := common.Event{
		Type:         common.EventTrade,
		MakerUID:     1,
		MakerOrderID: 2,
		TakerUID:     3,
		TakerOrderID: 4,
		Price:        105,
		Size:         7,
		Timestamp:    99,
	}

	report, err := ParseReport(SerializeReport(1, ev))
	require.NoError(t, err)
	assert.Equal(t, common.EventTrade, report.EventType)
	assert.Equal(t, uint32(1), report.Symbol)
	assert.Equal(t, uint64(1), report.MakerUID)
	assert.Equal(t, uint64(4), report.TakerOrderID)
	assert.Equal(t, int64(105), report.Price)
	assert.Equal(t, uint64(7), report.Size)
}

func TestParseRejectsMalformedFrames(t *testing.T) {
	_, err := parseMessage([]byte{0x00})
	assert.ErrorIs(t, err, ErrMessageTooShort)

	// Unknown type.
	_, err = parseMessage([]byte{0xFF, 0xFF})
	assert.ErrorIs(t, err, ErrInvalidMessageType)

	// Truncated new-order body.
	frame := SerializeNewOrder(NewOrderMessage{Symbol: 1, UID: 1, OrderID: 1})
	_, err = parseMessage(frame[:10])
	assert.ErrorIs(t, err, ErrMessageTooShort)

	_, err = ParseReport([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrMessageTooShort)
}
