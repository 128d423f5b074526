package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// currencyCodeRegex matches a currency code such as "BTC", "USD" or "USDT".
var currencyCodeRegex = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)

// InstrumentID identifies a currency pair within one exchange, in the
// canonical form "BASE-COUNTER" (e.g. "BTC-USD"). The dash form keeps
// identifiers URL-safe.
type InstrumentID string

// Instrument is a registered trading pair. Immutable once registered;
// it exists from the moment its registration event is applied until its
// removal event is applied.
type Instrument struct {
	ID              InstrumentID
	BaseCurrency    string
	CounterCurrency string
}

// NewInstrument validates the currency codes and returns the instrument
// with its derived identifier.
func NewInstrument(baseCurrency, counterCurrency string) (Instrument, error) {
	if !currencyCodeRegex.MatchString(baseCurrency) {
		return Instrument{}, fmt.Errorf("base currency %q must match %s", baseCurrency, currencyCodeRegex)
	}
	if !currencyCodeRegex.MatchString(counterCurrency) {
		return Instrument{}, fmt.Errorf("counter currency %q must match %s", counterCurrency, currencyCodeRegex)
	}
	if baseCurrency == counterCurrency {
		return Instrument{}, fmt.Errorf("base and counter currency must differ, got %q for both", baseCurrency)
	}
	return Instrument{
		ID:              InstrumentID(baseCurrency + "-" + counterCurrency),
		BaseCurrency:    baseCurrency,
		CounterCurrency: counterCurrency,
	}, nil
}

// ParseInstrumentID splits a canonical "BASE-COUNTER" symbol into an
// Instrument, validating both codes.
func ParseInstrumentID(symbol string) (Instrument, error) {
	base, counter, ok := strings.Cut(symbol, "-")
	if !ok {
		return Instrument{}, fmt.Errorf("instrument symbol %q must be of the form BASE-COUNTER", symbol)
	}
	return NewInstrument(base, counter)
}
