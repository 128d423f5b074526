package engine

import (
	"github.com/efreitasn/venue/internal/domain"
)

// Engine owns the order book for exactly one instrument. It splits
// matching into two halves so that live command handling and event
// replay share one mutation path:
//
//   - Match computes the deterministic fill plan for an incoming order
//     without touching the book;
//   - ApplyFill, Rest and Cancel are the only mutations, each driven by
//     exactly one applied event.
type Engine struct {
	instrument domain.Instrument
	book       *OrderBook
}

// NewEngine creates the matching engine for a freshly registered
// instrument with an empty book.
func NewEngine(instrument domain.Instrument) *Engine {
	return &Engine{
		instrument: instrument,
		book:       NewOrderBook(),
	}
}

// Instrument returns the instrument this engine trades.
func (e *Engine) Instrument() domain.Instrument {
	return e.instrument
}

// Book exposes the order book for read access (depth, resting orders).
func (e *Engine) Book() *OrderBook {
	return e.book
}

// Fill is one planned execution against a resting order, at the resting
// order's price.
type Fill struct {
	RestingOrderID    string
	RestingOriginator string
	Quantity          int64
	Price             int64
}

// MatchResult is the deterministic outcome of matching an incoming
// order against the current book. Remaining is the incoming quantity
// left unfilled after all fills.
type MatchResult struct {
	Fills     []Fill
	Remaining int64
}

// Match walks the opposite side of the book in price-time priority and
// plans fills for the incoming order: a fill occurs while the incoming
// order is marketable against the best resting entry, for
// min(incoming remaining, resting remaining) at the resting price.
// The book is not mutated.
func (e *Engine) Match(o domain.Order) MatchResult {
	res := MatchResult{Remaining: o.Quantity}

	walk := e.book.WalkAsks
	if o.Side == domain.SideSell {
		walk = e.book.WalkBids
	}

	walk(func(entry Entry) bool {
		if res.Remaining == 0 {
			return false
		}
		if o.Type == domain.OrderTypeLimit && !crosses(o, entry) {
			// Entries beyond this one are priced strictly worse.
			return false
		}
		qty := res.Remaining
		if entry.Remaining < qty {
			qty = entry.Remaining
		}
		res.Fills = append(res.Fills, Fill{
			RestingOrderID:    entry.OrderID,
			RestingOriginator: entry.Originator,
			Quantity:          qty,
			Price:             entry.Price,
		})
		res.Remaining -= qty
		return res.Remaining > 0
	})

	return res
}

// crosses reports whether a limit order's price is marketable against a
// resting entry: an incoming buy crosses an ask priced at or below it,
// an incoming sell crosses a bid priced at or above it.
func crosses(o domain.Order, resting Entry) bool {
	if o.Side == domain.SideBuy {
		return o.Price >= resting.Price
	}
	return o.Price <= resting.Price
}

// ApplyFill consumes qty from a resting order, removing it from the
// book when fully consumed.
func (e *Engine) ApplyFill(restingOrderID string, qty int64) error {
	return e.book.Reduce(restingOrderID, qty)
}

// Rest places the unfilled remainder of a limit order on the book.
func (e *Engine) Rest(entry Entry) error {
	return e.book.Insert(entry)
}

// Cancel removes a resting order from the book.
func (e *Engine) Cancel(orderID string) error {
	_, err := e.book.Remove(orderID)
	return err
}
