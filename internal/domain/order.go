package domain

import (
	"fmt"
	"regexp"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Side indicates whether an order buys or sells the base currency.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

var originatorRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// OrderDescriptor is the untrusted input an order is built from. Symbol
// is the canonical instrument form ("BTC-USD"). Price is nil for market
// orders and required for limit orders.
type OrderDescriptor struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Price      *int64 // counter-currency minor units
	Quantity   int64  // base-currency minor units
	Originator string
}

// Order is an immutable trading intent accepted by the exchange.
// Sequence is the aggregate-wide monotonic counter assigned at
// acceptance time; it breaks price ties (time priority). Price is 0 for
// market orders.
type Order struct {
	ID           string
	InstrumentID InstrumentID
	Side         Side
	Type         OrderType
	Price        int64
	Quantity     int64
	Originator   string
	Sequence     uint64
}

// NewOrderFromDescriptor validates a descriptor and returns the order
// it describes. It is a pure function: the caller supplies the order id
// and the acceptance sequence number, and no state is touched. Every
// validation failure wraps ErrInvalidOrder.
func NewOrderFromDescriptor(d OrderDescriptor, id string, sequence uint64) (Order, error) {
	instrument, err := ParseInstrumentID(d.Symbol)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if d.Side != SideBuy && d.Side != SideSell {
		return Order{}, fmt.Errorf("%w: side must be %q or %q, got %q", ErrInvalidOrder, SideBuy, SideSell, d.Side)
	}
	if d.Type != OrderTypeLimit && d.Type != OrderTypeMarket {
		return Order{}, fmt.Errorf("%w: type must be %q or %q, got %q", ErrInvalidOrder, OrderTypeLimit, OrderTypeMarket, d.Type)
	}
	if d.Quantity <= 0 {
		return Order{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, d.Quantity)
	}
	if !originatorRegex.MatchString(d.Originator) {
		return Order{}, fmt.Errorf("%w: originator must match %s", ErrInvalidOrder, originatorRegex)
	}

	var price int64
	switch d.Type {
	case OrderTypeLimit:
		if d.Price == nil {
			return Order{}, fmt.Errorf("%w: price is required for limit orders", ErrInvalidOrder)
		}
		if *d.Price <= 0 {
			return Order{}, fmt.Errorf("%w: price must be positive, got %d", ErrInvalidOrder, *d.Price)
		}
		price = *d.Price
	case OrderTypeMarket:
		if d.Price != nil {
			return Order{}, fmt.Errorf("%w: market orders must not carry a price", ErrInvalidOrder)
		}
	}

	return Order{
		ID:           id,
		InstrumentID: instrument.ID,
		Side:         d.Side,
		Type:         d.Type,
		Price:        price,
		Quantity:     d.Quantity,
		Originator:   d.Originator,
		Sequence:     sequence,
	}, nil
}
