package eventlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/exchange"
)

// Store is the durable, append-only event log, one ordered stream per
// exchange id, backed by pebble. Keys are "event/<exchangeId>/<seq>"
// with the sequence zero-padded so lexicographic key order equals
// append order.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the event store at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		// Events are the source of truth; every append must survive a crash.
		DisableWAL: false,
	})
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append durably persists one event at the given position of the
// exchange's stream. Positions start at 0 and must be contiguous; the
// caller (the command router) provides them because it already
// serializes commands per exchange.
func (s *Store) Append(exchangeID domain.ExchangeID, seq uint64, ev exchange.Event) error {
	value, err := Encode(ev)
	if err != nil {
		return err
	}
	return s.db.Set(keyFor(exchangeID, seq), value, pebble.Sync)
}

// Replay feeds every stored event for one exchange, in append order,
// through fn. A decode failure or an error from fn halts the replay.
func (s *Store) Replay(exchangeID domain.ExchangeID, fn func(seq uint64, ev exchange.Event) error) error {
	prefix := fmt.Sprintf("event/%s/", exchangeID)
	return s.scan([]byte(prefix), []byte(prefix+"~"), func(key []byte, value []byte) error {
		_, seq, err := parseKey(key)
		if err != nil {
			return err
		}
		ev, err := Decode(value)
		if err != nil {
			return fmt.Errorf("event %s/%d: %w", exchangeID, seq, err)
		}
		return fn(seq, ev)
	})
}

// ReplayAll feeds every stored event for every exchange through fn.
// Within one exchange events arrive in append order; exchanges arrive
// grouped, ordered by id.
func (s *Store) ReplayAll(fn func(exchangeID domain.ExchangeID, seq uint64, ev exchange.Event) error) error {
	return s.scan([]byte("event/"), []byte("event/~"), func(key []byte, value []byte) error {
		exchangeID, seq, err := parseKey(key)
		if err != nil {
			return err
		}
		ev, err := Decode(value)
		if err != nil {
			return fmt.Errorf("event %s/%d: %w", exchangeID, seq, err)
		}
		return fn(exchangeID, seq, ev)
	})
}

func (s *Store) scan(lower, upper []byte, fn func(key, value []byte) error) (err error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, iter.Close())
	}()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(exchangeID domain.ExchangeID, seq uint64) []byte {
	return []byte(fmt.Sprintf("event/%s/%020d", exchangeID, seq))
}

func parseKey(key []byte) (domain.ExchangeID, uint64, error) {
	parts := strings.Split(string(key), "/")
	if len(parts) != 3 || parts[0] != "event" {
		return "", 0, fmt.Errorf("malformed event key %q", key)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed event key %q: %v", key, err)
	}
	return domain.ExchangeID(parts[1]), seq, nil
}
