package common

import (
	"fmt"
)

// Trade accounts for the two parties who matched. The maker is the resting
// order that provided liquidity; the taker is the incoming order that
// consumed it. Fee basis points are copied from the symbol spec so that
// downstream accounting needs no catalog lookup.
type Trade struct {
	Symbol       uint32
	MakerUID     uint64
	MakerOrderID uint64
	TakerUID     uint64
	TakerOrderID uint64
	Timestamp    uint64
	MatchQty     uint64
	Price        int64
	MakerFeeBP   int32
	TakerFeeBP   int32
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Symbol:    %d
Maker:     (%d,%d)
Taker:     (%d,%d)
Timestamp: %d
MatchQty:  %d
Price:     %d`,
		t.Symbol,
		t.MakerUID,
		t.MakerOrderID,
		t.TakerUID,
		t.TakerOrderID,
		t.Timestamp,
		t.MatchQty,
		t.Price,
	)
}
