package exchange

import "github.com/efreitasn/venue/internal/domain"

// Command is the closed set of inputs the exchange aggregate accepts.
// Each variant is validated against current state by Handle; a valid
// command yields events, an invalid one yields a typed failure and no
// state change.
type Command interface {
	isCommand()
}

// CreateExchange initializes a fresh exchange instance. It is the only
// command an uninitialized aggregate accepts.
type CreateExchange struct {
	ExchangeID domain.ExchangeID
}

// RegisterInstrument registers a currency pair for trading.
type RegisterInstrument struct {
	BaseCurrency    string
	CounterCurrency string
}

// RemoveInstrument delists a currency pair. Resting orders are
// explicitly cancelled as part of the removal.
type RemoveInstrument struct {
	InstrumentID domain.InstrumentID
}

// PlaceOrder submits a trading intent against a registered instrument.
type PlaceOrder struct {
	Descriptor domain.OrderDescriptor
}

func (CreateExchange) isCommand()     {}
func (RegisterInstrument) isCommand() {}
func (RemoveInstrument) isCommand()   {}
func (PlaceOrder) isCommand()         {}
