package engine

import (
	"gungnir/internal/common"
)

// PriceLevel is the FIFO queue of resting order handles at one price.
// Orders are consumed from the front; the queue order is admission order
// except for iceberg replenishments, which re-enter at the back.
type PriceLevel struct {
	price int64
	queue []common.Handle

	// totalVisible is the sum of the queued orders' remaining (visible)
	// sizes. It is strictly positive iff the queue is non-empty; a level
	// that empties is dropped from its side index.
	totalVisible uint64
}

func (l *PriceLevel) Price() int64 {
	return l.price
}

func (l *PriceLevel) TotalVisible() uint64 {
	return l.totalVisible
}

func (l *PriceLevel) Len() int {
	return len(l.queue)
}

func (l *PriceLevel) Empty() bool {
	return len(l.queue) == 0
}

// Handles returns the queued handles front first. The slice aliases the
// level's storage and must not be mutated.
func (l *PriceLevel) Handles() []common.Handle {
	return l.queue
}

func (l *PriceLevel) pushBack(h common.Handle, size uint64) {
	l.queue = append(l.queue, h)
	l.totalVisible += size
}

func (l *PriceLevel) peekFront() (common.Handle, bool) {
	if len(l.queue) == 0 {
		return common.HandleNone, false
	}
	return l.queue[0], true
}

func (l *PriceLevel) popFront() (common.Handle, bool) {
	if len(l.queue) == 0 {
		return common.HandleNone, false
	}
	h := l.queue[0]
	l.queue = l.queue[1:]
	return h, true
}

// reduce subtracts consumed quantity from the visible total without
// touching the queue; callers pair it with the maker's own decrement.
func (l *PriceLevel) reduce(size uint64) {
	l.totalVisible -= size
}

// remove unlinks an arbitrary handle, preserving FIFO order of the rest.
// Levels are short in practice, so a linear scan beats any index here.
func (l *PriceLevel) remove(h common.Handle, size uint64) bool {
	for i, q := range l.queue {
		if q == h {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			l.totalVisible -= size
			return true
		}
	}
	return false
}
