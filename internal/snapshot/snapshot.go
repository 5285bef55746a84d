// Package snapshot serializes one matching book into a versioned,
// self-describing binary image and rebuilds identical book state from it.
// Snapshots are taken at command boundaries only; replaying the event
// stream from a restored book reproduces the live book exactly.
package snapshot

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
	"github.com/klauspost/compress/s2"

	"gungnir/internal/common"
	"gungnir/internal/engine"
	"gungnir/internal/pool"
)

var (
	ErrBadMagic       = errors.New("snapshot: bad magic")
	ErrBadVersion     = errors.New("snapshot: unsupported version")
	ErrTruncated      = errors.New("snapshot: truncated payload")
	ErrSymbolMismatch = errors.New("snapshot: symbol mismatch")
)

// Wire format: a 6-byte uncompressed prefix (magic + version) followed by
// an s2-compressed payload.
const (
	magic   = "GSNP"
	Version = 1

	prefixLen = len(magic) + 2

	// id(16) symbol(4) clock(8) seq(8) lastTradeFlag(1) lastTrade(8)
	payloadHeaderLen = 16 + 4 + 8 + 8 + 1 + 8

	// handle(4) orderID(8) uid(8) side(1) type(1) price(8) stop(8)
	// reserve(8) remaining(8) hidden(8) visible(8) expire(8) seq(8)
	orderRecordLen = 4 + 8 + 8 + 1 + 1 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 8
)

// Capture serializes the book. Each snapshot carries a fresh uuid identity
// so downstream journals can reference it.
func Capture(book *engine.OrderBook) []byte {
	var orders, stops []pool.RestingOrder
	book.EachResting(func(o pool.RestingOrder) { orders = append(orders, o) })
	book.EachStop(func(o pool.RestingOrder) { stops = append(stops, o) })

	payload := make([]byte, payloadHeaderLen+8+(len(orders)+len(stops))*orderRecordLen)

	id := uuid.New()
	copy(payload[0:16], id[:])
	binary.BigEndian.PutUint32(payload[16:20], book.Spec().SymbolID)
	binary.BigEndian.PutUint64(payload[20:28], book.Clock())
	binary.BigEndian.PutUint64(payload[28:36], book.Seq())

	lastTrade, hasLastTrade := book.LastTradePrice()
	if hasLastTrade {
		payload[36] = 1
	}
	binary.BigEndian.PutUint64(payload[37:45], uint64(lastTrade))

	offset := payloadHeaderLen
	binary.BigEndian.PutUint32(payload[offset:], uint32(len(orders)))
	offset += 4
	for _, o := range orders {
		offset += putOrder(payload[offset:], o)
	}
	binary.BigEndian.PutUint32(payload[offset:], uint32(len(stops)))
	offset += 4
	for _, o := range stops {
		offset += putOrder(payload[offset:], o)
	}

	out := make([]byte, prefixLen, prefixLen+s2.MaxEncodedLen(len(payload)))
	copy(out[0:4], magic)
	binary.BigEndian.PutUint16(out[4:6], Version)
	return append(out, s2.Encode(nil, payload)...)
}

// Restore rebuilds a book from a snapshot taken of the same symbol. The
// returned book is indistinguishable from the captured one for every
// subsequent command.
func Restore(data []byte, spec common.SymbolSpec, capacity int, opts ...engine.BookOption) (*engine.OrderBook, error) {
	if len(data) < prefixLen || string(data[0:4]) != magic {
		return nil, ErrBadMagic
	}
	if binary.BigEndian.Uint16(data[4:6]) != Version {
		return nil, ErrBadVersion
	}

	payload, err := s2.Decode(nil, data[prefixLen:])
	if err != nil {
		return nil, err
	}
	if len(payload) < payloadHeaderLen+8 {
		return nil, ErrTruncated
	}

	symbol := binary.BigEndian.Uint32(payload[16:20])
	if symbol != spec.SymbolID {
		return nil, ErrSymbolMismatch
	}

	clock := binary.BigEndian.Uint64(payload[20:28])
	seq := binary.BigEndian.Uint64(payload[28:36])
	hasLastTrade := payload[36] == 1
	lastTrade := int64(binary.BigEndian.Uint64(payload[37:45]))

	book := engine.NewOrderBook(spec, capacity, opts...)
	book.RestoreClock(clock, seq, lastTrade, hasLastTrade)

	offset := payloadHeaderLen
	orders, offset, err := readOrders(payload, offset)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := book.RestoreResting(o); err != nil {
			return nil, err
		}
	}

	stops, _, err := readOrders(payload, offset)
	if err != nil {
		return nil, err
	}
	for _, o := range stops {
		if err := book.RestoreStop(o); err != nil {
			return nil, err
		}
	}

	return book, nil
}

// ID extracts the snapshot identity without decoding the full image.
func ID(data []byte) (uuid.UUID, error) {
	if len(data) < prefixLen || string(data[0:4]) != magic {
		return uuid.UUID{}, ErrBadMagic
	}
	payload, err := s2.Decode(nil, data[prefixLen:])
	if err != nil {
		return uuid.UUID{}, err
	}
	if len(payload) < 16 {
		return uuid.UUID{}, ErrTruncated
	}
	var id uuid.UUID
	copy(id[:], payload[0:16])
	return id, nil
}

func putOrder(buf []byte, o pool.RestingOrder) int {
	binary.BigEndian.PutUint32(buf[0:4], uint32(o.Handle))
	binary.BigEndian.PutUint64(buf[4:12], o.OrderID)
	binary.BigEndian.PutUint64(buf[12:20], o.UID)
	buf[20] = byte(o.Side)
	buf[21] = byte(o.OrderType)
	binary.BigEndian.PutUint64(buf[22:30], uint64(o.Price))
	binary.BigEndian.PutUint64(buf[30:38], uint64(o.StopPrice))
	binary.BigEndian.PutUint64(buf[38:46], uint64(o.ReservePrice))
	binary.BigEndian.PutUint64(buf[46:54], o.Remaining)
	binary.BigEndian.PutUint64(buf[54:62], o.ReserveHidden)
	binary.BigEndian.PutUint64(buf[62:70], o.VisibleSize)
	binary.BigEndian.PutUint64(buf[70:78], o.ExpireTime)
	binary.BigEndian.PutUint64(buf[78:86], o.Seq)
	return orderRecordLen
}

func readOrders(payload []byte, offset int) ([]pool.RestingOrder, int, error) {
	if len(payload) < offset+4 {
		return nil, 0, ErrTruncated
	}
	count := int(binary.BigEndian.Uint32(payload[offset:]))
	offset += 4

	if len(payload) < offset+count*orderRecordLen {
		return nil, 0, ErrTruncated
	}

	orders := make([]pool.RestingOrder, 0, count)
	for i := 0; i < count; i++ {
		buf := payload[offset : offset+orderRecordLen]
		orders = append(orders, pool.RestingOrder{
			Handle:        common.Handle(binary.BigEndian.Uint32(buf[0:4])),
			OrderID:       binary.BigEndian.Uint64(buf[4:12]),
			UID:           binary.BigEndian.Uint64(buf[12:20]),
			Side:          common.Side(buf[20]),
			OrderType:     common.OrderType(buf[21]),
			Price:         int64(binary.BigEndian.Uint64(buf[22:30])),
			StopPrice:     int64(binary.BigEndian.Uint64(buf[30:38])),
			ReservePrice:  int64(binary.BigEndian.Uint64(buf[38:46])),
			Remaining:     binary.BigEndian.Uint64(buf[46:54]),
			ReserveHidden: binary.BigEndian.Uint64(buf[54:62]),
			VisibleSize:   binary.BigEndian.Uint64(buf[62:70]),
			ExpireTime:    binary.BigEndian.Uint64(buf[70:78]),
			Seq:           binary.BigEndian.Uint64(buf[78:86]),
		})
		offset += orderRecordLen
	}
	return orders, offset, nil
}
