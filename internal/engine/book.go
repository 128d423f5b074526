package engine

import (
	"fmt"

	"github.com/google/btree"

	"github.com/efreitasn/venue/internal/domain"
)

// Entry is a single order resting on the book. Remaining is always
// positive: an entry that reaches zero is removed in the same mutation.
type Entry struct {
	OrderID    string
	Side       domain.Side
	Price      int64
	Remaining  int64
	Sequence   uint64
	Originator string
}

// PriceLevel is an aggregated view of one price on one side of the book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess orders the bid side: price descending, then sequence
// ascending. Min() therefore returns the best bid (highest price,
// earliest acceptance).
func bidLess(a, b Entry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Sequence < b.Sequence
}

// askLess orders the ask side: price ascending, then sequence
// ascending. Min() returns the best ask (lowest price, earliest
// acceptance).
func askLess(a, b Entry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Sequence < b.Sequence
}

// OrderBook holds the resting buy and sell orders for one instrument in
// two B-trees, with a secondary index for O(log n) access by order id.
// It is not safe for concurrent use; the owning aggregate serializes
// all access.
type OrderBook struct {
	bids  *btree.BTreeG[Entry]
	asks  *btree.BTreeG[Entry]
	index map[string]Entry // order id → entry
}

// NewOrderBook creates an empty order book.
func NewOrderBook() *OrderBook {
	const degree = 32
	return &OrderBook{
		bids:  btree.NewG(degree, bidLess),
		asks:  btree.NewG(degree, askLess),
		index: make(map[string]Entry),
	}
}

// Insert rests an entry on its side of the book. It fails if an entry
// with the same order id is already resting or the remaining quantity
// is not positive.
func (b *OrderBook) Insert(e Entry) error {
	if e.Remaining <= 0 {
		return fmt.Errorf("entry %s has non-positive remaining quantity %d", e.OrderID, e.Remaining)
	}
	if _, ok := b.index[e.OrderID]; ok {
		return fmt.Errorf("order %s is already resting", e.OrderID)
	}
	b.tree(e.Side).ReplaceOrInsert(e)
	b.index[e.OrderID] = e
	return nil
}

// Reduce decrements the remaining quantity of a resting entry by qty,
// removing it when remaining reaches zero. It fails if the order is not
// resting or qty exceeds the remaining quantity.
func (b *OrderBook) Reduce(orderID string, qty int64) error {
	entry, ok := b.index[orderID]
	if !ok {
		return fmt.Errorf("order %s is not resting", orderID)
	}
	if qty <= 0 || qty > entry.Remaining {
		return fmt.Errorf("cannot reduce order %s by %d, remaining %d", orderID, qty, entry.Remaining)
	}
	entry.Remaining -= qty
	if entry.Remaining == 0 {
		b.tree(entry.Side).Delete(entry)
		delete(b.index, orderID)
		return nil
	}
	// Same (price, sequence) key, so this replaces in place.
	b.tree(entry.Side).ReplaceOrInsert(entry)
	b.index[orderID] = entry
	return nil
}

// Remove deletes a resting entry by order id, returning it. Used for
// cancellation.
func (b *OrderBook) Remove(orderID string) (Entry, error) {
	entry, ok := b.index[orderID]
	if !ok {
		return Entry{}, fmt.Errorf("order %s is not resting", orderID)
	}
	b.tree(entry.Side).Delete(entry)
	delete(b.index, orderID)
	return entry, nil
}

// Has reports whether an order id is resting on the book.
func (b *OrderBook) Has(orderID string) bool {
	_, ok := b.index[orderID]
	return ok
}

// BestBid returns the highest-priority bid (highest price, earliest
// sequence).
func (b *OrderBook) BestBid() (Entry, bool) {
	return b.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest
// sequence).
func (b *OrderBook) BestAsk() (Entry, bool) {
	return b.asks.Min()
}

// WalkBids iterates bids in priority order (highest price first). The
// callback returns true to continue, false to stop.
func (b *OrderBook) WalkBids(fn func(Entry) bool) {
	b.bids.Ascend(fn)
}

// WalkAsks iterates asks in priority order (lowest price first).
func (b *OrderBook) WalkAsks(fn func(Entry) bool) {
	b.asks.Ascend(fn)
}

// Len returns the number of individual resting orders on both sides.
func (b *OrderBook) Len() int {
	return b.bids.Len() + b.asks.Len()
}

// Resting returns all resting entries in priority order, bids first.
// Used when an instrument is removed: every returned entry gets an
// explicit cancellation.
func (b *OrderBook) Resting() []Entry {
	out := make([]Entry, 0, b.Len())
	b.bids.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	b.asks.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (b *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(b.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (b *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(b.asks, n)
}

func topLevels(tree *btree.BTreeG[Entry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(e Entry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == e.Price {
			levels[len(levels)-1].TotalQuantity += e.Remaining
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         e.Price,
			TotalQuantity: e.Remaining,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

func (b *OrderBook) tree(side domain.Side) *btree.BTreeG[Entry] {
	if side == domain.SideBuy {
		return b.bids
	}
	return b.asks
}
