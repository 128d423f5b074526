package exchange

import (
	"fmt"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/efreitasn/venue/internal/domain"
)

var propertyPairs = [][2]string{
	{"BTC", "USD"},
	{"ETH", "USD"},
	{"ETH", "BTC"},
}

// TestProperty_ReplayEquivalence drives a live exchange with a random
// command sequence, then replays the emitted events into a fresh
// aggregate and checks both end up in identical state.
func TestProperty_ReplayEquivalence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		live := New()
		var log []Event

		exec := func(cmd Command) error {
			events, err := live.Handle(cmd)
			if err != nil {
				return err
			}
			for _, ev := range events {
				if err := live.Apply(ev); err != nil {
					t.Fatalf("live apply %s: %v", ev.EventType(), err)
				}
			}
			log = append(log, events...)
			return nil
		}

		if err := exec(CreateExchange{ExchangeID: "ex-1"}); err != nil {
			t.Fatalf("create: %v", err)
		}

		numCommands := rapid.IntRange(1, 60).Draw(t, "numCommands")
		for i := 0; i < numCommands; i++ {
			pair := propertyPairs[rapid.IntRange(0, len(propertyPairs)-1).Draw(t, fmt.Sprintf("pair-%d", i))]
			symbol := pair[0] + "-" + pair[1]

			// Errors are expected for random commands (duplicate
			// registration, unknown instrument, no liquidity) and leave
			// no events behind.
			switch rapid.IntRange(0, 9).Draw(t, fmt.Sprintf("kind-%d", i)) {
			case 0:
				exec(RegisterInstrument{BaseCurrency: pair[0], CounterCurrency: pair[1]})
			case 1:
				exec(RemoveInstrument{InstrumentID: domain.InstrumentID(symbol)})
			default:
				side := domain.SideBuy
				if rapid.Bool().Draw(t, fmt.Sprintf("isSell-%d", i)) {
					side = domain.SideSell
				}
				d := domain.OrderDescriptor{
					Symbol:     symbol,
					Side:       side,
					Quantity:   rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("qty-%d", i)),
					Originator: "trader",
				}
				if rapid.Bool().Draw(t, fmt.Sprintf("isLimit-%d", i)) {
					p := rapid.Int64Range(50, 150).Draw(t, fmt.Sprintf("price-%d", i))
					d.Type = domain.OrderTypeLimit
					d.Price = &p
				} else {
					d.Type = domain.OrderTypeMarket
				}
				exec(PlaceOrder{Descriptor: d})
			}
		}

		replayed := New()
		for i, ev := range log {
			if err := replayed.Apply(ev); err != nil {
				t.Fatalf("replay event %d (%s): %v", i, ev.EventType(), err)
			}
		}

		if live.ID() != replayed.ID() {
			t.Fatalf("id: live %s, replayed %s", live.ID(), replayed.ID())
		}

		liveInstruments := instrumentIDs(live)
		repInstruments := instrumentIDs(replayed)
		if len(liveInstruments) != len(repInstruments) {
			t.Fatalf("instruments: live %v, replayed %v", liveInstruments, repInstruments)
		}
		for i := range liveInstruments {
			if liveInstruments[i] != repInstruments[i] {
				t.Fatalf("instruments: live %v, replayed %v", liveInstruments, repInstruments)
			}
		}

		for _, id := range liveInstruments {
			liveEng, _ := live.Engine(id)
			repEng, _ := replayed.Engine(id)

			liveResting := liveEng.Book().Resting()
			repResting := repEng.Book().Resting()
			if len(liveResting) != len(repResting) {
				t.Fatalf("%s: resting orders: live %d, replayed %d", id, len(liveResting), len(repResting))
			}
			for i := range liveResting {
				if liveResting[i] != repResting[i] {
					t.Fatalf("%s: resting[%d]: live %+v, replayed %+v", id, i, liveResting[i], repResting[i])
				}
			}
		}
	})
}

func instrumentIDs(x *Exchange) []domain.InstrumentID {
	instruments := x.Instruments()
	ids := make([]domain.InstrumentID, len(instruments))
	for i, instrument := range instruments {
		ids[i] = instrument.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TestProperty_BookNeverCrossed checks that after any command sequence
// no instrument's book has a bid priced at or above an ask.
func TestProperty_BookNeverCrossed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := New()
		exec := func(cmd Command) {
			events, err := x.Handle(cmd)
			if err != nil {
				return
			}
			for _, ev := range events {
				if err := x.Apply(ev); err != nil {
					t.Fatalf("apply %s: %v", ev.EventType(), err)
				}
			}
		}

		exec(CreateExchange{ExchangeID: "ex-1"})
		exec(RegisterInstrument{BaseCurrency: "BTC", CounterCurrency: "USD"})

		numOrders := rapid.IntRange(1, 50).Draw(t, "numOrders")
		for i := 0; i < numOrders; i++ {
			side := domain.SideBuy
			if rapid.Bool().Draw(t, fmt.Sprintf("isSell-%d", i)) {
				side = domain.SideSell
			}
			p := rapid.Int64Range(50, 150).Draw(t, fmt.Sprintf("price-%d", i))
			exec(PlaceOrder{Descriptor: domain.OrderDescriptor{
				Symbol:     "BTC-USD",
				Side:       side,
				Type:       domain.OrderTypeLimit,
				Price:      &p,
				Quantity:   rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("qty-%d", i)),
				Originator: "trader",
			}})

			eng, _ := x.Engine("BTC-USD")
			bestBid, hasBid := eng.Book().BestBid()
			bestAsk, hasAsk := eng.Book().BestAsk()
			if hasBid && hasAsk && bestBid.Price >= bestAsk.Price {
				t.Fatalf("book crossed after order %d: best bid %d >= best ask %d", i, bestBid.Price, bestAsk.Price)
			}
		}
	})
}
