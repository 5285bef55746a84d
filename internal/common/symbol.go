package common

type SymbolType uint8

const (
	Spot SymbolType = iota
	Futures
	Perpetual
	CallOption
	PutOption
)

func (t SymbolType) String() string {
	switch t {
	case Spot:
		return "spot"
	case Futures:
		return "futures"
	case Perpetual:
		return "perpetual"
	case CallOption:
		return "call-option"
	case PutOption:
		return "put-option"
	}
	return "unknown"
}

// SymbolSpec is the read-only definition of one tradeable instrument. The
// matching core itself consults only SymbolID; scales, fees and margins are
// pass-through fields for downstream settlement.
type SymbolSpec struct {
	SymbolID      uint32
	Type          SymbolType
	BaseCurrency  uint32
	QuoteCurrency uint32
	BaseScaleK    int64
	QuoteScaleK   int64
	TakerFeeBP    int32
	MakerFeeBP    int32
	MarginBuy     int64
	MarginSell    int64
}
