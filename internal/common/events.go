package common

import "fmt"

type EventType uint8

const (
	EventTrade EventType = iota
	EventCancel
	EventReject
	EventActivate
)

func (t EventType) String() string {
	switch t {
	case EventTrade:
		return "trade"
	case EventCancel:
		return "cancel"
	case EventReject:
		return "reject"
	case EventActivate:
		return "activate"
	}
	return "unknown"
}

// Event is a single entry of a command's output sequence. It is a flat
// value struct, copied to reporters without allocation; which fields are
// meaningful depends on Type.
type Event struct {
	Type EventType

	// Trade fields. Price is always the maker's price.
	MakerUID     uint64
	MakerOrderID uint64
	TakerUID     uint64
	TakerOrderID uint64
	Price        int64
	Size         uint64

	// Cancel/Reject/Activate fields.
	UID       uint64
	OrderID   uint64
	Reason    Reason
	Remaining uint64

	Timestamp uint64
}

func (e Event) String() string {
	switch e.Type {
	case EventTrade:
		return fmt.Sprintf("trade %d@%d maker=(%d,%d) taker=(%d,%d)",
			e.Size, e.Price, e.MakerUID, e.MakerOrderID, e.TakerUID, e.TakerOrderID)
	case EventCancel:
		return fmt.Sprintf("cancel (%d,%d) reason=%v remaining=%d",
			e.UID, e.OrderID, e.Reason, e.Remaining)
	case EventReject:
		return fmt.Sprintf("reject (%d,%d) reason=%v", e.UID, e.OrderID, e.Reason)
	case EventActivate:
		return fmt.Sprintf("activate (%d,%d)", e.UID, e.OrderID)
	}
	return "unknown"
}

// EventBuffer is the ordered output sequence attached to a command. Most
// commands emit at most a couple of events, so the zero value avoids
// allocating until first use and Reset keeps the backing array for reuse.
type EventBuffer []Event

func (b *EventBuffer) Append(e Event) {
	*b = append(*b, e)
}

func (b *EventBuffer) Reset() {
	*b = (*b)[:0]
}

func (b EventBuffer) Trades() int {
	n := 0
	for _, e := range b {
		if e.Type == EventTrade {
			n++
		}
	}
	return n
}
