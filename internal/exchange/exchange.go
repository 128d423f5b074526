package exchange

import (
	"fmt"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
)

// Exchange is the event-sourced aggregate: one exchange instance owning
// a matching engine per registered instrument. The instrument map's
// keys are exactly the set of currently registered instruments; every
// command validates against it.
//
// Handle never mutates state — it only decides which events to emit.
// Apply is the single mutation path, shared by live processing and
// replay, so the same event sequence always produces identical state.
//
// Not safe for concurrent use: the surrounding command router
// serializes all commands per exchange id.
type Exchange struct {
	id      domain.ExchangeID
	created bool
	engines map[domain.InstrumentID]*engine.Engine
	lastSeq uint64 // aggregate-wide order sequence, rebuilt on replay
}

// New returns an uninitialized exchange. It accepts no command but
// CreateExchange until an ExchangeCreated event is applied.
func New() *Exchange {
	return &Exchange{
		engines: make(map[domain.InstrumentID]*engine.Engine),
	}
}

// ID returns the exchange identifier, empty until created.
func (x *Exchange) ID() domain.ExchangeID {
	return x.id
}

// Created reports whether ExchangeCreated has been applied.
func (x *Exchange) Created() bool {
	return x.created
}

// Instruments returns the currently registered instruments in no
// particular order.
func (x *Exchange) Instruments() []domain.Instrument {
	out := make([]domain.Instrument, 0, len(x.engines))
	for _, eng := range x.engines {
		out = append(out, eng.Instrument())
	}
	return out
}

// Engine returns the matching engine for an instrument, if registered.
func (x *Exchange) Engine(id domain.InstrumentID) (*engine.Engine, bool) {
	eng, ok := x.engines[id]
	return eng, ok
}

// Handle validates a command against current state and, on success,
// returns the events it gives rise to. State is never touched: the
// caller persists the events and feeds them back through Apply.
func (x *Exchange) Handle(cmd Command) ([]Event, error) {
	if c, ok := cmd.(CreateExchange); ok {
		return x.handleCreate(c)
	}
	if !x.created {
		return nil, fmt.Errorf("%w: exchange is not created yet", domain.ErrInvalidCommand)
	}

	switch c := cmd.(type) {
	case RegisterInstrument:
		return x.handleRegister(c)
	case RemoveInstrument:
		return x.handleRemove(c)
	case PlaceOrder:
		return x.handlePlaceOrder(c)
	default:
		return nil, fmt.Errorf("%w: unknown command %T", domain.ErrInvalidCommand, cmd)
	}
}

func (x *Exchange) handleCreate(cmd CreateExchange) ([]Event, error) {
	if x.created {
		return nil, fmt.Errorf("%w: %s", domain.ErrExchangeExists, x.id)
	}
	id, err := domain.ParseExchangeID(string(cmd.ExchangeID))
	if err != nil {
		return nil, err
	}
	return []Event{ExchangeCreated{ExchangeID: id}}, nil
}

func (x *Exchange) handleRegister(cmd RegisterInstrument) ([]Event, error) {
	instrument, err := domain.NewInstrument(cmd.BaseCurrency, cmd.CounterCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCommand, err)
	}
	if _, ok := x.engines[instrument.ID]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateInstrument, instrument.ID)
	}
	return []Event{InstrumentRegistered{
		ExchangeID:      x.id,
		InstrumentID:    instrument.ID,
		BaseCurrency:    instrument.BaseCurrency,
		CounterCurrency: instrument.CounterCurrency,
	}}, nil
}

// handleRemove delists an instrument. Every order still resting on its
// book gets an explicit OrderCancelled event ahead of the removal, so
// the log never loses an order silently.
func (x *Exchange) handleRemove(cmd RemoveInstrument) ([]Event, error) {
	eng, ok := x.engines[cmd.InstrumentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchInstrument, cmd.InstrumentID)
	}

	var events []Event
	for _, entry := range eng.Book().Resting() {
		events = append(events, OrderCancelled{
			InstrumentID: cmd.InstrumentID,
			OrderID:      entry.OrderID,
		})
	}
	events = append(events, InstrumentRemoved{
		ExchangeID:   x.id,
		InstrumentID: cmd.InstrumentID,
	})
	return events, nil
}

// handlePlaceOrder validates the descriptor, plans the match against
// the current book and turns the plan into events. Order and trade ids
// are generated here, at acceptance time, so replay reuses the logged
// ids instead of generating new ones.
func (x *Exchange) handlePlaceOrder(cmd PlaceOrder) ([]Event, error) {
	order, err := domain.NewOrderFromDescriptor(cmd.Descriptor, domain.NewOrderID(), x.lastSeq+1)
	if err != nil {
		return nil, err
	}
	eng, ok := x.engines[order.InstrumentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchInstrument, order.InstrumentID)
	}

	res := eng.Match(order)

	// Market orders never rest: with no crossing liquidity at all the
	// order is rejected outright, before any event is produced.
	if order.Type == domain.OrderTypeMarket && len(res.Fills) == 0 {
		return nil, fmt.Errorf("%w: no resting %s orders for %s", domain.ErrNoLiquidity, order.Side.Opposite(), order.InstrumentID)
	}

	placed := OrderPlaced{
		InstrumentID: order.InstrumentID,
		OrderID:      order.ID,
		Side:         order.Side,
		Type:         order.Type,
		Quantity:     order.Quantity,
		Originator:   order.Originator,
		Sequence:     order.Sequence,
	}
	if order.Type == domain.OrderTypeLimit {
		price := order.Price
		placed.Price = &price
	}
	events := []Event{placed}

	for _, fill := range res.Fills {
		trade := TradeExecuted{
			InstrumentID: order.InstrumentID,
			TradeID:      domain.NewTradeID(),
			Quantity:     fill.Quantity,
			Price:        fill.Price,
		}
		if order.Side == domain.SideBuy {
			trade.BuyOrderID = order.ID
			trade.SellOrderID = fill.RestingOrderID
		} else {
			trade.BuyOrderID = fill.RestingOrderID
			trade.SellOrderID = order.ID
		}
		events = append(events, trade)
	}

	if res.Remaining > 0 && order.Type == domain.OrderTypeLimit {
		events = append(events, OrderRested{
			InstrumentID: order.InstrumentID,
			OrderID:      order.ID,
			Side:         order.Side,
			Price:        order.Price,
			Quantity:     res.Remaining,
			Originator:   order.Originator,
			Sequence:     order.Sequence,
		})
	}

	return events, nil
}

// Apply mutates aggregate state with one event. It is the only code
// path that changes state, for live commands and replay alike. An event
// that cannot be applied means the log and the aggregate have diverged;
// the error is fatal and recovery must halt.
func (x *Exchange) Apply(ev Event) error {
	switch e := ev.(type) {
	case ExchangeCreated:
		if x.created {
			return fmt.Errorf("exchange %s created twice", x.id)
		}
		x.id = e.ExchangeID
		x.created = true
		return nil
	}

	if !x.created {
		return fmt.Errorf("event %s applied to uninitialized exchange", ev.EventType())
	}

	switch e := ev.(type) {
	case InstrumentRegistered:
		if _, ok := x.engines[e.InstrumentID]; ok {
			return fmt.Errorf("instrument %s registered twice", e.InstrumentID)
		}
		x.engines[e.InstrumentID] = engine.NewEngine(domain.Instrument{
			ID:              e.InstrumentID,
			BaseCurrency:    e.BaseCurrency,
			CounterCurrency: e.CounterCurrency,
		})
		return nil

	case InstrumentRemoved:
		eng, ok := x.engines[e.InstrumentID]
		if !ok {
			return fmt.Errorf("removal of unknown instrument %s", e.InstrumentID)
		}
		if eng.Book().Len() != 0 {
			return fmt.Errorf("instrument %s removed with %d resting orders", e.InstrumentID, eng.Book().Len())
		}
		delete(x.engines, e.InstrumentID)
		return nil

	case OrderPlaced:
		if _, ok := x.engines[e.InstrumentID]; !ok {
			return fmt.Errorf("order %s placed for unknown instrument %s", e.OrderID, e.InstrumentID)
		}
		if e.Sequence <= x.lastSeq {
			return fmt.Errorf("order sequence %d is not monotonic (last %d)", e.Sequence, x.lastSeq)
		}
		x.lastSeq = e.Sequence
		return nil

	case TradeExecuted:
		eng, ok := x.engines[e.InstrumentID]
		if !ok {
			return fmt.Errorf("trade %s for unknown instrument %s", e.TradeID, e.InstrumentID)
		}
		// Exactly one side of the trade is resting: the incoming order
		// enters the book only after its fills, via OrderRested.
		switch {
		case eng.Book().Has(e.BuyOrderID):
			return eng.ApplyFill(e.BuyOrderID, e.Quantity)
		case eng.Book().Has(e.SellOrderID):
			return eng.ApplyFill(e.SellOrderID, e.Quantity)
		default:
			return fmt.Errorf("trade %s references no resting order", e.TradeID)
		}

	case OrderRested:
		eng, ok := x.engines[e.InstrumentID]
		if !ok {
			return fmt.Errorf("order %s rested for unknown instrument %s", e.OrderID, e.InstrumentID)
		}
		return eng.Rest(engine.Entry{
			OrderID:    e.OrderID,
			Side:       e.Side,
			Price:      e.Price,
			Remaining:  e.Quantity,
			Sequence:   e.Sequence,
			Originator: e.Originator,
		})

	case OrderCancelled:
		eng, ok := x.engines[e.InstrumentID]
		if !ok {
			return fmt.Errorf("order %s cancelled for unknown instrument %s", e.OrderID, e.InstrumentID)
		}
		return eng.Cancel(e.OrderID)

	default:
		return fmt.Errorf("unknown event %T", ev)
	}
}
