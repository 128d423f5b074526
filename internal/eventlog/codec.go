package eventlog

import (
	"encoding/json"
	"fmt"

	"github.com/efreitasn/venue/internal/exchange"
)

// envelope is the persisted form of one event: a type tag plus the
// event's own JSON payload.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// decoders maps each event type tag to its payload decoder. The table
// is the closed counterpart of the aggregate's event set: adding an
// event without registering it here fails loudly at decode time.
var decoders = map[string]func(json.RawMessage) (exchange.Event, error){
	"exchange_created":      decodeInto[exchange.ExchangeCreated],
	"instrument_registered": decodeInto[exchange.InstrumentRegistered],
	"instrument_removed":    decodeInto[exchange.InstrumentRemoved],
	"order_placed":          decodeInto[exchange.OrderPlaced],
	"trade_executed":        decodeInto[exchange.TradeExecuted],
	"order_rested":          decodeInto[exchange.OrderRested],
	"order_cancelled":       decodeInto[exchange.OrderCancelled],
}

func decodeInto[E exchange.Event](payload json.RawMessage) (exchange.Event, error) {
	var ev E
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode serializes an event into its storage form.
func Encode(ev exchange.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.EventType(), err)
	}
	return json.Marshal(envelope{
		Type:    ev.EventType(),
		Payload: payload,
	})
}

// Decode deserializes a stored record back into its event variant. An
// unknown type tag or malformed payload is a corruption error.
func Decode(data []byte) (exchange.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	ev, err := decode(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return ev, nil
}
