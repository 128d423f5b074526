package exchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/efreitasn/venue/internal/domain"
)

// run handles a command and applies the resulting events, the way the
// service layer does for live traffic.
func run(t *testing.T, x *Exchange, cmd Command) []Event {
	t.Helper()
	events, err := x.Handle(cmd)
	if err != nil {
		t.Fatalf("handle %T: %v", cmd, err)
	}
	for _, ev := range events {
		if err := x.Apply(ev); err != nil {
			t.Fatalf("apply %s: %v", ev.EventType(), err)
		}
	}
	return events
}

func createdExchange(t *testing.T) *Exchange {
	t.Helper()
	x := New()
	run(t, x, CreateExchange{ExchangeID: "ex-1"})
	return x
}

func tradingExchange(t *testing.T) *Exchange {
	t.Helper()
	x := createdExchange(t)
	run(t, x, RegisterInstrument{BaseCurrency: "BTC", CounterCurrency: "USD"})
	return x
}

func price(v int64) *int64 { return &v }

func limitDescriptor(side domain.Side, p, qty int64) domain.OrderDescriptor {
	return domain.OrderDescriptor{
		Symbol:     "BTC-USD",
		Side:       side,
		Type:       domain.OrderTypeLimit,
		Price:      price(p),
		Quantity:   qty,
		Originator: "trader",
	}
}

func TestCreateExchange(t *testing.T) {
	x := New()
	events := run(t, x, CreateExchange{ExchangeID: "ex-1"})

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if !x.Created() || x.ID() != "ex-1" {
		t.Errorf("created=%v id=%s", x.Created(), x.ID())
	}
}

func TestCreateExchange_Twice(t *testing.T) {
	x := createdExchange(t)
	_, err := x.Handle(CreateExchange{ExchangeID: "ex-2"})
	if !errors.Is(err, domain.ErrExchangeExists) {
		t.Errorf("err = %v, want ErrExchangeExists", err)
	}
}

func TestCreateExchange_InvalidID(t *testing.T) {
	// Ids become event-log key segments, so a "/" or a byte sorting at
	// or above "~" must never be accepted.
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"slash", "team/a"},
		{"tilde", "~venue"},
		{"space", "ex 1"},
		{"too long", strings.Repeat("a", 65)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := New()
			_, err := x.Handle(CreateExchange{ExchangeID: domain.ExchangeID(tt.id)})
			if !errors.Is(err, domain.ErrInvalidCommand) {
				t.Errorf("id %q: err = %v, want ErrInvalidCommand", tt.id, err)
			}
			if x.Created() {
				t.Errorf("id %q: exchange came to life from a rejected command", tt.id)
			}
		})
	}
}

func TestCommandsRequireCreation(t *testing.T) {
	x := New()
	_, err := x.Handle(RegisterInstrument{BaseCurrency: "BTC", CounterCurrency: "USD"})
	if !errors.Is(err, domain.ErrInvalidCommand) {
		t.Errorf("err = %v, want ErrInvalidCommand", err)
	}
}

func TestRegisterInstrument(t *testing.T) {
	x := createdExchange(t)
	events := run(t, x, RegisterInstrument{BaseCurrency: "BTC", CounterCurrency: "USD"})

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	reg, ok := events[0].(InstrumentRegistered)
	if !ok {
		t.Fatalf("event = %T, want InstrumentRegistered", events[0])
	}
	if reg.InstrumentID != "BTC-USD" || reg.BaseCurrency != "BTC" || reg.CounterCurrency != "USD" {
		t.Errorf("event = %+v", reg)
	}
	if _, ok := x.Engine("BTC-USD"); !ok {
		t.Error("engine not created for registered instrument")
	}
}

func TestRegisterInstrument_Duplicate(t *testing.T) {
	x := tradingExchange(t)
	_, err := x.Handle(RegisterInstrument{BaseCurrency: "BTC", CounterCurrency: "USD"})
	if !errors.Is(err, domain.ErrDuplicateInstrument) {
		t.Errorf("err = %v, want ErrDuplicateInstrument", err)
	}
}

func TestRegisterInstrument_Invalid(t *testing.T) {
	x := createdExchange(t)
	_, err := x.Handle(RegisterInstrument{BaseCurrency: "btc", CounterCurrency: "USD"})
	if !errors.Is(err, domain.ErrInvalidCommand) {
		t.Errorf("err = %v, want ErrInvalidCommand", err)
	}
	_, err = x.Handle(RegisterInstrument{BaseCurrency: "BTC", CounterCurrency: "BTC"})
	if !errors.Is(err, domain.ErrInvalidCommand) {
		t.Errorf("same base and counter: err = %v, want ErrInvalidCommand", err)
	}
}

func TestRemoveInstrument_Empty(t *testing.T) {
	x := tradingExchange(t)
	events := run(t, x, RemoveInstrument{InstrumentID: "BTC-USD"})

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if _, ok := events[0].(InstrumentRemoved); !ok {
		t.Fatalf("event = %T, want InstrumentRemoved", events[0])
	}
	if _, ok := x.Engine("BTC-USD"); ok {
		t.Error("engine still present after removal")
	}
}

func TestRemoveInstrument_CancelsRestingOrders(t *testing.T) {
	x := tradingExchange(t)
	run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 5)})
	run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideSell, 200_00, 3)})

	events := run(t, x, RemoveInstrument{InstrumentID: "BTC-USD"})
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 (2 cancellations + removal)", len(events))
	}
	for _, ev := range events[:2] {
		if _, ok := ev.(OrderCancelled); !ok {
			t.Errorf("event = %T, want OrderCancelled before removal", ev)
		}
	}
	if _, ok := events[2].(InstrumentRemoved); !ok {
		t.Errorf("last event = %T, want InstrumentRemoved", events[2])
	}
	if _, ok := x.Engine("BTC-USD"); ok {
		t.Error("engine still present after removal")
	}
}

func TestRemoveInstrument_Unknown(t *testing.T) {
	x := tradingExchange(t)
	_, err := x.Handle(RemoveInstrument{InstrumentID: "ETH-USD"})
	if !errors.Is(err, domain.ErrNoSuchInstrument) {
		t.Errorf("err = %v, want ErrNoSuchInstrument", err)
	}
}

func TestPlaceOrder_RestsOnEmptyBook(t *testing.T) {
	x := tradingExchange(t)
	events := run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 10)})

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (placed + rested)", len(events))
	}
	placed, ok := events[0].(OrderPlaced)
	if !ok {
		t.Fatalf("event[0] = %T, want OrderPlaced", events[0])
	}
	if placed.Sequence != 1 || placed.Price == nil || *placed.Price != 100_00 {
		t.Errorf("placed = %+v", placed)
	}
	rested, ok := events[1].(OrderRested)
	if !ok {
		t.Fatalf("event[1] = %T, want OrderRested", events[1])
	}
	if rested.OrderID != placed.OrderID || rested.Quantity != 10 {
		t.Errorf("rested = %+v", rested)
	}

	eng, _ := x.Engine("BTC-USD")
	if !eng.Book().Has(placed.OrderID) {
		t.Error("order not resting after apply")
	}
}

func TestPlaceOrder_FullFill(t *testing.T) {
	x := tradingExchange(t)
	askEvents := run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideSell, 100_00, 10)})
	askID := askEvents[0].(OrderPlaced).OrderID

	events := run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 110_00, 10)})
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (placed + trade)", len(events))
	}
	bidID := events[0].(OrderPlaced).OrderID
	trade, ok := events[1].(TradeExecuted)
	if !ok {
		t.Fatalf("event[1] = %T, want TradeExecuted", events[1])
	}
	if trade.BuyOrderID != bidID || trade.SellOrderID != askID {
		t.Errorf("trade sides = %+v", trade)
	}
	if trade.Price != 100_00 || trade.Quantity != 10 {
		t.Errorf("trade = %+v, want price 100_00 qty 10", trade)
	}

	eng, _ := x.Engine("BTC-USD")
	if eng.Book().Len() != 0 {
		t.Errorf("book len = %d, want 0", eng.Book().Len())
	}
}

func TestPlaceOrder_PartialFillRestsRemainder(t *testing.T) {
	x := tradingExchange(t)
	run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideSell, 100_00, 4)})

	events := run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 10)})
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 (placed + trade + rested)", len(events))
	}
	trade := events[1].(TradeExecuted)
	if trade.Quantity != 4 {
		t.Errorf("trade quantity = %d, want 4", trade.Quantity)
	}
	rested := events[2].(OrderRested)
	if rested.Quantity != 6 || rested.Side != domain.SideBuy {
		t.Errorf("rested = %+v", rested)
	}
}

func TestPlaceOrder_MarketOrderNoLiquidity(t *testing.T) {
	x := tradingExchange(t)
	_, err := x.Handle(PlaceOrder{Descriptor: domain.OrderDescriptor{
		Symbol:     "BTC-USD",
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeMarket,
		Quantity:   5,
		Originator: "trader",
	}})
	if !errors.Is(err, domain.ErrNoLiquidity) {
		t.Errorf("err = %v, want ErrNoLiquidity", err)
	}
}

func TestPlaceOrder_MarketOrderPartialDiscardsRemainder(t *testing.T) {
	x := tradingExchange(t)
	run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideSell, 100_00, 3)})

	events := run(t, x, PlaceOrder{Descriptor: domain.OrderDescriptor{
		Symbol:     "BTC-USD",
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeMarket,
		Quantity:   10,
		Originator: "trader",
	}})
	// Placed + one trade; the unfilled 7 units are discarded, never
	// rested.
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	placed := events[0].(OrderPlaced)
	if placed.Price != nil {
		t.Error("market order event carries a price")
	}
	trade := events[1].(TradeExecuted)
	if trade.Quantity != 3 {
		t.Errorf("trade quantity = %d, want 3", trade.Quantity)
	}
	eng, _ := x.Engine("BTC-USD")
	if eng.Book().Has(placed.OrderID) {
		t.Error("market order rested on the book")
	}
}

func TestPlaceOrder_UnknownInstrument(t *testing.T) {
	x := tradingExchange(t)
	d := limitDescriptor(domain.SideBuy, 100_00, 1)
	d.Symbol = "ETH-USD"
	_, err := x.Handle(PlaceOrder{Descriptor: d})
	if !errors.Is(err, domain.ErrNoSuchInstrument) {
		t.Errorf("err = %v, want ErrNoSuchInstrument", err)
	}
}

func TestPlaceOrder_InvalidDescriptor(t *testing.T) {
	x := tradingExchange(t)
	d := limitDescriptor(domain.SideBuy, 100_00, 0)
	_, err := x.Handle(PlaceOrder{Descriptor: d})
	if !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("err = %v, want ErrInvalidOrder", err)
	}
}

func TestPlaceOrder_SequenceIncreases(t *testing.T) {
	x := tradingExchange(t)
	first := run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 1)})
	second := run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 99_00, 1)})

	s1 := first[0].(OrderPlaced).Sequence
	s2 := second[0].(OrderPlaced).Sequence
	if s1 != 1 || s2 != 2 {
		t.Errorf("sequences = %d, %d, want 1, 2", s1, s2)
	}
}

func TestApply_RejectsCorruptSequences(t *testing.T) {
	t.Run("created twice", func(t *testing.T) {
		x := createdExchange(t)
		if err := x.Apply(ExchangeCreated{ExchangeID: "ex-2"}); err == nil {
			t.Error("expected error applying ExchangeCreated twice")
		}
	})

	t.Run("event before creation", func(t *testing.T) {
		x := New()
		err := x.Apply(InstrumentRegistered{InstrumentID: "BTC-USD", BaseCurrency: "BTC", CounterCurrency: "USD"})
		if err == nil {
			t.Error("expected error applying event to uninitialized exchange")
		}
	})

	t.Run("non-monotonic sequence", func(t *testing.T) {
		x := tradingExchange(t)
		run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 1)})
		err := x.Apply(OrderPlaced{InstrumentID: "BTC-USD", OrderID: "o", Side: domain.SideBuy, Type: domain.OrderTypeLimit, Quantity: 1, Sequence: 1})
		if err == nil {
			t.Error("expected error applying repeated sequence")
		}
	})

	t.Run("removal with resting orders", func(t *testing.T) {
		x := tradingExchange(t)
		run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 1)})
		if err := x.Apply(InstrumentRemoved{InstrumentID: "BTC-USD"}); err == nil {
			t.Error("expected error removing instrument with resting orders")
		}
	})

	t.Run("trade without resting order", func(t *testing.T) {
		x := tradingExchange(t)
		err := x.Apply(TradeExecuted{InstrumentID: "BTC-USD", TradeID: "t", BuyOrderID: "a", SellOrderID: "b", Quantity: 1, Price: 1})
		if err == nil {
			t.Error("expected error applying trade referencing no resting order")
		}
	})
}

func TestReplayReconstructsState(t *testing.T) {
	x := tradingExchange(t)
	var log []Event
	log = append(log, ExchangeCreated{ExchangeID: "ex-1"})
	log = append(log, InstrumentRegistered{ExchangeID: "ex-1", InstrumentID: "BTC-USD", BaseCurrency: "BTC", CounterCurrency: "USD"})

	log = append(log, run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideSell, 100_00, 5)})...)
	log = append(log, run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideBuy, 100_00, 8)})...)
	log = append(log, run(t, x, PlaceOrder{Descriptor: limitDescriptor(domain.SideSell, 101_00, 2)})...)

	replayed := New()
	for i, ev := range log {
		if err := replayed.Apply(ev); err != nil {
			t.Fatalf("replay event %d (%s): %v", i, ev.EventType(), err)
		}
	}

	liveEng, _ := x.Engine("BTC-USD")
	replayedEng, ok := replayed.Engine("BTC-USD")
	if !ok {
		t.Fatal("replayed exchange is missing the instrument")
	}

	live := liveEng.Book().Resting()
	rep := replayedEng.Book().Resting()
	if len(live) != len(rep) {
		t.Fatalf("resting orders: live %d, replayed %d", len(live), len(rep))
	}
	for i := range live {
		if live[i] != rep[i] {
			t.Errorf("resting[%d]: live %+v, replayed %+v", i, live[i], rep[i])
		}
	}
}
