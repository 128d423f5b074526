package exchange

import "github.com/efreitasn/venue/internal/domain"

// Event is the closed set of facts recorded in the event log. Events
// are immutable; applying the same ordered sequence to a fresh
// aggregate always reconstructs the same state. Field names are part of
// the persisted schema and must stay stable.
type Event interface {
	EventType() string
}

// ExchangeCreated records the birth of an exchange instance.
type ExchangeCreated struct {
	ExchangeID domain.ExchangeID `json:"exchange_id"`
}

// InstrumentRegistered records a currency pair joining the exchange.
type InstrumentRegistered struct {
	ExchangeID      domain.ExchangeID   `json:"exchange_id"`
	InstrumentID    domain.InstrumentID `json:"instrument_id"`
	BaseCurrency    string              `json:"base_currency"`
	CounterCurrency string              `json:"counter_currency"`
}

// InstrumentRemoved records a currency pair leaving the exchange. Any
// resting orders were cancelled by the OrderCancelled events preceding
// it in the log.
type InstrumentRemoved struct {
	ExchangeID   domain.ExchangeID   `json:"exchange_id"`
	InstrumentID domain.InstrumentID `json:"instrument_id"`
}

// OrderPlaced records the acceptance of an order, including the
// aggregate-wide sequence number assigned to it. Price is absent for
// market orders.
type OrderPlaced struct {
	InstrumentID domain.InstrumentID `json:"instrument_id"`
	OrderID      string              `json:"order_id"`
	Side         domain.Side         `json:"side"`
	Type         domain.OrderType    `json:"type"`
	Quantity     int64               `json:"quantity"`
	Price        *int64              `json:"price,omitempty"`
	Originator   string              `json:"originator"`
	Sequence     uint64              `json:"sequence"`
}

// TradeExecuted records one execution between an incoming and a resting
// order, at the resting order's price.
type TradeExecuted struct {
	InstrumentID domain.InstrumentID `json:"instrument_id"`
	TradeID      string              `json:"trade_id"`
	BuyOrderID   string              `json:"buy_order_id"`
	SellOrderID  string              `json:"sell_order_id"`
	Quantity     int64               `json:"quantity"`
	Price        int64               `json:"price"`
}

// OrderRested records the unfilled remainder of a limit order entering
// the book.
type OrderRested struct {
	InstrumentID domain.InstrumentID `json:"instrument_id"`
	OrderID      string              `json:"order_id"`
	Side         domain.Side         `json:"side"`
	Price        int64               `json:"price"`
	Quantity     int64               `json:"quantity"`
	Originator   string              `json:"originator"`
	Sequence     uint64              `json:"sequence"`
}

// OrderCancelled records a resting order leaving the book without
// (further) execution.
type OrderCancelled struct {
	InstrumentID domain.InstrumentID `json:"instrument_id"`
	OrderID      string              `json:"order_id"`
}

func (ExchangeCreated) EventType() string      { return "exchange_created" }
func (InstrumentRegistered) EventType() string { return "instrument_registered" }
func (InstrumentRemoved) EventType() string    { return "instrument_removed" }
func (OrderPlaced) EventType() string          { return "order_placed" }
func (TradeExecuted) EventType() string        { return "trade_executed" }
func (OrderRested) EventType() string          { return "order_rested" }
func (OrderCancelled) EventType() string       { return "order_cancelled" }
