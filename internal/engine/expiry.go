package engine

import (
	"container/heap"

	"gungnir/internal/common"
)

// expiryEntry schedules one Day/GTD order for removal. Entries outlive the
// orders they reference, so each carries the order key and deadline to
// verify against the pool slot before acting; a recycled handle never
// matches.
type expiryEntry struct {
	at      uint64
	handle  common.Handle
	uid     uint64
	orderID uint64
}

// expiryQueue is a min-heap on expire time.
type expiryQueue []expiryEntry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].at < q[j].at }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *expiryQueue) Push(x any)        { *q = append(*q, x.(expiryEntry)) }
func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

func (q *expiryQueue) push(e expiryEntry) {
	heap.Push(q, e)
}

// sweepExpired removes every order whose deadline the clock has reached,
// emitting Cancel{Expired} for each. Runs before a command is admitted.
func (b *OrderBook) sweepExpired(ev *common.EventBuffer) {
	for len(b.expiry) > 0 && b.expiry[0].at <= b.clock {
		entry := heap.Pop(&b.expiry).(expiryEntry)

		order := b.byHandle.Get(entry.handle)
		if order == nil || order.UID != entry.uid || order.OrderID != entry.orderID ||
			order.ExpireTime != entry.at {
			// The order was cancelled or filled; the slot may already
			// belong to someone else.
			continue
		}

		remaining := order.Total()
		b.unlink(entry.handle, order)
		ev.Append(common.Event{
			Type:      common.EventCancel,
			UID:       entry.uid,
			OrderID:   entry.orderID,
			Reason:    common.ReasonExpired,
			Remaining: remaining,
			Timestamp: b.clock,
		})
	}
}
