package common

import (
	"fmt"
)

// OrderCommand is the unit of work the matching core consumes. It is mutated
// in place: the matcher appends the resulting events to Events, which is the
// only acknowledgement the submitter receives.
type OrderCommand struct {
	UID     uint64 // Submitting user
	OrderID uint64 // Unique per user
	Symbol  uint32 // Target book

	Action    Action
	OrderType OrderType
	Side      Side

	Price        int64  // Limit price in ticks; 0 for a market leg
	ReservePrice int64  // Slippage cap for market/stop-market sweeps
	Size         uint64 // Quantity in lots

	VisibleSize uint64 // Iceberg display slice
	StopPrice   int64  // Stop trigger price
	ExpireTime  uint64 // GTD deadline on the logical clock

	Timestamp uint64 // Caller-supplied monotone logical clock

	Events EventBuffer
}

func (cmd OrderCommand) String() string {
	return fmt.Sprintf(
		`UID:        %d
OrderID:    %d
Symbol:     %d
Action:     %v
OrderType:  %v
Side:       %v
Price:      %d (reserve %d, stop %d)
Size:       %d (visible %d)
Timestamp:  %d`,
		cmd.UID,
		cmd.OrderID,
		cmd.Symbol,
		cmd.Action,
		cmd.OrderType,
		cmd.Side,
		cmd.Price,
		cmd.ReservePrice,
		cmd.StopPrice,
		cmd.Size,
		cmd.VisibleSize,
		cmd.Timestamp,
	)
}
