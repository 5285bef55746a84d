package engine

import (
	"github.com/tidwall/btree"

	"gungnir/internal/common"
)

// PriceLevels keeps one side's levels sorted best first.
type PriceLevels = btree.BTreeG[*PriceLevel]

// sideIndex is the ordered price -> level mapping for one side of the book.
// Asks sort ascending (best = lowest), bids descending (best = highest), so
// Min is always the best level. The best pointer is cached and refreshed on
// level insert/remove, keeping best-quote access O(1) between mutations.
type sideIndex struct {
	side   common.Side
	levels *PriceLevels
	best   *PriceLevel
}

func newSideIndex(side common.Side) *sideIndex {
	var less func(a, b *PriceLevel) bool
	if side == Bid {
		// Sorted greatest first.
		less = func(a, b *PriceLevel) bool { return a.price > b.price }
	} else {
		// Sorted least first.
		less = func(a, b *PriceLevel) bool { return a.price < b.price }
	}
	return &sideIndex{
		side:   side,
		levels: btree.NewBTreeG(less),
	}
}

// betterOrEqual reports whether price a has priority over (or ties) b on
// this side.
func (s *sideIndex) betterOrEqual(a, b int64) bool {
	if s.side == Bid {
		return a >= b
	}
	return a <= b
}

// bestLevel returns the cached best level.
func (s *sideIndex) bestLevel() (*PriceLevel, bool) {
	if s.best == nil {
		return nil, false
	}
	return s.best, true
}

func (s *sideIndex) bestPrice() (int64, bool) {
	if s.best == nil {
		return 0, false
	}
	return s.best.price, true
}

// get returns the level at an exact price.
func (s *sideIndex) get(price int64) (*PriceLevel, bool) {
	return s.levels.GetMut(&PriceLevel{price: price})
}

// getOrCreate returns the level at price, inserting an empty one if absent.
func (s *sideIndex) getOrCreate(price int64) *PriceLevel {
	if level, ok := s.levels.GetMut(&PriceLevel{price: price}); ok {
		return level
	}
	level := &PriceLevel{price: price}
	s.levels.Set(level)
	if s.best == nil || s.betterOrEqual(price, s.best.price) {
		s.best = level
	}
	return level
}

// dropIfEmpty removes an emptied level and refreshes the cached best.
func (s *sideIndex) dropIfEmpty(level *PriceLevel) {
	if !level.Empty() {
		return
	}
	s.levels.Delete(level)
	if s.best == level {
		if next, ok := s.levels.MinMut(); ok {
			s.best = next
		} else {
			s.best = nil
		}
	}
}

// scan visits levels best first until fn returns false.
func (s *sideIndex) scan(fn func(*PriceLevel) bool) {
	s.levels.Scan(fn)
}

// Items returns the levels best first.
func (s *sideIndex) Items() []*PriceLevel {
	return s.levels.Items()
}

func (s *sideIndex) Len() int {
	return s.levels.Len()
}
