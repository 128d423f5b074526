package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/eventlog"
	"github.com/efreitasn/venue/internal/exchange"
	"github.com/efreitasn/venue/internal/publish"
)

// Sink receives every applied event in order. The local projection
// implements it; external consumers get the same stream via the
// publisher.
type Sink interface {
	HandleEvent(exchangeID domain.ExchangeID, ev exchange.Event)
}

// ExchangeService is the command router: it owns all exchange
// aggregates, serializes command delivery per exchange id, and runs
// the validate → append → apply → publish pipeline. Different
// exchanges process commands fully in parallel; within one exchange a
// per-aggregate mutex makes validate-then-apply atomic.
type ExchangeService struct {
	store     *eventlog.Store
	publisher publish.Publisher
	sink      Sink
	logger    *slog.Logger

	mu   sync.RWMutex
	aggs map[domain.ExchangeID]*aggregate
}

// aggregate pairs one exchange instance with its delivery lock and its
// position in the event log.
type aggregate struct {
	mu      sync.Mutex
	ex      *exchange.Exchange
	nextSeq uint64
	broken  bool
}

// NewExchangeService wires the service. Call Recover before accepting
// commands.
func NewExchangeService(store *eventlog.Store, publisher publish.Publisher, sink Sink, logger *slog.Logger) *ExchangeService {
	return &ExchangeService{
		store:     store,
		publisher: publisher,
		sink:      sink,
		logger:    logger,
		aggs:      make(map[domain.ExchangeID]*aggregate),
	}
}

// Recover rebuilds every aggregate and the local read model by
// replaying the full event history through the same apply path live
// processing uses. Any event that fails to apply, or a gap in a
// stream's sequence, halts recovery: the log and the apply logic have
// diverged and continuing would corrupt state.
func (s *ExchangeService) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	err := s.store.ReplayAll(func(exchangeID domain.ExchangeID, seq uint64, ev exchange.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		agg, ok := s.aggs[exchangeID]
		if !ok {
			agg = &aggregate{ex: exchange.New()}
			s.aggs[exchangeID] = agg
		}
		if seq != agg.nextSeq {
			return fmt.Errorf("exchange %s: event sequence gap, want %d got %d", exchangeID, agg.nextSeq, seq)
		}
		if err := agg.ex.Apply(ev); err != nil {
			return fmt.Errorf("exchange %s: apply event %d (%s): %w", exchangeID, seq, ev.EventType(), err)
		}
		agg.nextSeq = seq + 1
		s.sink.HandleEvent(exchangeID, ev)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("recovery halted: %w", err)
	}

	s.logger.Info("recovery complete",
		slog.Int("events", count),
		slog.Int("exchanges", len(s.aggs)),
	)
	return nil
}

// CreateExchange creates a fresh exchange instance. An empty id gets a
// generated one. Fails with ErrExchangeExists if the id is taken.
func (s *ExchangeService) CreateExchange(ctx context.Context, exchangeID domain.ExchangeID) ([]exchange.Event, error) {
	if exchangeID == "" {
		exchangeID = domain.NewExchangeID()
	} else {
		// Caller-chosen ids are validated before they reach the
		// aggregate map or the event-log key space.
		id, err := domain.ParseExchangeID(string(exchangeID))
		if err != nil {
			return nil, err
		}
		exchangeID = id
	}

	s.mu.Lock()
	if _, ok := s.aggs[exchangeID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrExchangeExists, exchangeID)
	}
	agg := &aggregate{ex: exchange.New()}
	s.aggs[exchangeID] = agg
	s.mu.Unlock()

	events, err := s.execute(ctx, exchangeID, agg, exchange.CreateExchange{ExchangeID: exchangeID})
	if err != nil {
		// The aggregate never came to life; forget it so the id can be retried.
		s.mu.Lock()
		delete(s.aggs, exchangeID)
		s.mu.Unlock()
		return nil, err
	}
	return events, nil
}

// Execute delivers one command to the exchange identified by
// exchangeID. It returns the persisted events on success, or a typed
// validation failure leaving all state unchanged.
func (s *ExchangeService) Execute(ctx context.Context, exchangeID domain.ExchangeID, cmd exchange.Command) ([]exchange.Event, error) {
	s.mu.RLock()
	agg, ok := s.aggs[exchangeID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrExchangeNotFound, exchangeID)
	}
	return s.execute(ctx, exchangeID, agg, cmd)
}

func (s *ExchangeService) execute(ctx context.Context, exchangeID domain.ExchangeID, agg *aggregate, cmd exchange.Command) ([]exchange.Event, error) {
	agg.mu.Lock()
	defer agg.mu.Unlock()

	if agg.broken {
		return nil, fmt.Errorf("exchange %s is halted after a persistence failure", exchangeID)
	}

	events, err := agg.ex.Handle(cmd)
	if err != nil {
		return nil, err
	}

	// Persist first: an event is a fact only once it is durable.
	for i, ev := range events {
		if err := s.store.Append(exchangeID, agg.nextSeq+uint64(i), ev); err != nil {
			// A partial append leaves the log ahead of in-memory state;
			// halt this aggregate rather than guess.
			agg.broken = true
			return nil, fmt.Errorf("append event to log: %w", err)
		}
	}

	for _, ev := range events {
		if err := agg.ex.Apply(ev); err != nil {
			agg.broken = true
			return nil, fmt.Errorf("apply just-validated event %s: %w", ev.EventType(), err)
		}
	}
	agg.nextSeq += uint64(len(events))

	for _, ev := range events {
		s.sink.HandleEvent(exchangeID, ev)
	}
	if err := s.publisher.Publish(ctx, exchangeID, events); err != nil {
		// The log is the source of truth; a publish failure only delays
		// external read models.
		s.logger.Warn("publish failed",
			slog.String("exchange_id", string(exchangeID)),
			slog.String("error", err.Error()),
		)
	}

	return events, nil
}
