package projection

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/exchange"
)

// maxTrades caps the per-instrument trade history kept in memory.
const maxTrades = 1000

// Projection is an in-process read model built exclusively from the
// event stream — it never touches aggregate state directly, the same
// contract an external Kafka consumer would have. It answers the query
// endpoints: registered instruments, book depth, recent trades.
//
// Safe for concurrent use: writes come from the command pipeline,
// reads from HTTP handlers.
type Projection struct {
	mu        sync.RWMutex
	exchanges map[domain.ExchangeID]*exchangeView
	logger    *slog.Logger
}

type exchangeView struct {
	instruments map[domain.InstrumentID]domain.Instrument
	books       map[domain.InstrumentID]*engine.OrderBook
	trades      map[domain.InstrumentID][]domain.Trade
}

// New creates an empty projection.
func New(logger *slog.Logger) *Projection {
	return &Projection{
		exchanges: make(map[domain.ExchangeID]*exchangeView),
		logger:    logger,
	}
}

// HandleEvent folds one event into the read model. Events from a
// consistent log always apply cleanly; anything else is logged and
// skipped — a stale read model must not wedge the command pipeline.
func (p *Projection) HandleEvent(exchangeID domain.ExchangeID, ev exchange.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.apply(exchangeID, ev); err != nil {
		p.logger.Warn("projection skipped event",
			slog.String("exchange_id", string(exchangeID)),
			slog.String("event_type", ev.EventType()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Projection) apply(exchangeID domain.ExchangeID, ev exchange.Event) error {
	switch e := ev.(type) {
	case exchange.ExchangeCreated:
		p.exchanges[e.ExchangeID] = &exchangeView{
			instruments: make(map[domain.InstrumentID]domain.Instrument),
			books:       make(map[domain.InstrumentID]*engine.OrderBook),
			trades:      make(map[domain.InstrumentID][]domain.Trade),
		}
		return nil

	case exchange.InstrumentRegistered:
		view, err := p.view(exchangeID)
		if err != nil {
			return err
		}
		view.instruments[e.InstrumentID] = domain.Instrument{
			ID:              e.InstrumentID,
			BaseCurrency:    e.BaseCurrency,
			CounterCurrency: e.CounterCurrency,
		}
		view.books[e.InstrumentID] = engine.NewOrderBook()
		return nil

	case exchange.InstrumentRemoved:
		view, err := p.view(exchangeID)
		if err != nil {
			return err
		}
		delete(view.instruments, e.InstrumentID)
		delete(view.books, e.InstrumentID)
		delete(view.trades, e.InstrumentID)
		return nil

	case exchange.OrderPlaced:
		// Acceptance carries no book mutation; fills and resting
		// follow as their own events.
		return nil

	case exchange.TradeExecuted:
		view, err := p.view(exchangeID)
		if err != nil {
			return err
		}
		book, ok := view.books[e.InstrumentID]
		if !ok {
			return domain.ErrNoSuchInstrument
		}
		switch {
		case book.Has(e.BuyOrderID):
			if err := book.Reduce(e.BuyOrderID, e.Quantity); err != nil {
				return err
			}
		case book.Has(e.SellOrderID):
			if err := book.Reduce(e.SellOrderID, e.Quantity); err != nil {
				return err
			}
		}
		trades := append(view.trades[e.InstrumentID], domain.Trade{
			TradeID:      e.TradeID,
			InstrumentID: e.InstrumentID,
			BuyOrderID:   e.BuyOrderID,
			SellOrderID:  e.SellOrderID,
			Quantity:     e.Quantity,
			Price:        e.Price,
		})
		if len(trades) > maxTrades {
			trades = trades[len(trades)-maxTrades:]
		}
		view.trades[e.InstrumentID] = trades
		return nil

	case exchange.OrderRested:
		view, err := p.view(exchangeID)
		if err != nil {
			return err
		}
		book, ok := view.books[e.InstrumentID]
		if !ok {
			return domain.ErrNoSuchInstrument
		}
		return book.Insert(engine.Entry{
			OrderID:    e.OrderID,
			Side:       e.Side,
			Price:      e.Price,
			Remaining:  e.Quantity,
			Sequence:   e.Sequence,
			Originator: e.Originator,
		})

	case exchange.OrderCancelled:
		view, err := p.view(exchangeID)
		if err != nil {
			return err
		}
		book, ok := view.books[e.InstrumentID]
		if !ok {
			return domain.ErrNoSuchInstrument
		}
		_, err = book.Remove(e.OrderID)
		return err

	default:
		return nil
	}
}

func (p *Projection) view(exchangeID domain.ExchangeID) (*exchangeView, error) {
	view, ok := p.exchanges[exchangeID]
	if !ok {
		return nil, domain.ErrExchangeNotFound
	}
	return view, nil
}

// Instruments returns the registered instruments of an exchange, sorted
// by identifier.
func (p *Projection) Instruments(exchangeID domain.ExchangeID) ([]domain.Instrument, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	view, err := p.view(exchangeID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Instrument, 0, len(view.instruments))
	for _, instrument := range view.instruments {
		out = append(out, instrument)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Depth returns up to n aggregated price levels per side for an
// instrument's book.
func (p *Projection) Depth(exchangeID domain.ExchangeID, instrumentID domain.InstrumentID, n int) (bids, asks []engine.PriceLevel, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	view, err := p.view(exchangeID)
	if err != nil {
		return nil, nil, err
	}
	book, ok := view.books[instrumentID]
	if !ok {
		return nil, nil, domain.ErrNoSuchInstrument
	}
	return book.TopBids(n), book.TopAsks(n), nil
}

// Trades returns the most recent trades for an instrument, newest
// last, capped at limit.
func (p *Projection) Trades(exchangeID domain.ExchangeID, instrumentID domain.InstrumentID, limit int) ([]domain.Trade, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	view, err := p.view(exchangeID)
	if err != nil {
		return nil, err
	}
	if _, ok := view.instruments[instrumentID]; !ok {
		return nil, domain.ErrNoSuchInstrument
	}
	trades := view.trades[instrumentID]
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	return out, nil
}
