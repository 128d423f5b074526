package domain

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// exchangeIDRegex bounds caller-chosen exchange ids. The charset matters
// beyond cosmetics: event-log keys embed the id between "/" separators
// and scan up to an ASCII "~" bound, so a "/" or a high-sorting byte in
// an id would corrupt or escape the key space.
var exchangeIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ExchangeID identifies one exchange instance. Assigned at creation and
// never reused; all events for an exchange are keyed by it.
type ExchangeID string

// NewExchangeID returns a fresh random exchange identifier.
func NewExchangeID() ExchangeID {
	return ExchangeID(uuid.New().String())
}

// ParseExchangeID validates a caller-chosen exchange identifier. Every
// failure wraps ErrInvalidCommand.
func ParseExchangeID(s string) (ExchangeID, error) {
	if !exchangeIDRegex.MatchString(s) {
		return "", fmt.Errorf("%w: exchange id must match %s", ErrInvalidCommand, exchangeIDRegex)
	}
	return ExchangeID(s), nil
}

// NewOrderID returns a fresh random order identifier.
func NewOrderID() string {
	return uuid.New().String()
}

// NewTradeID returns a fresh random trade identifier.
func NewTradeID() string {
	return uuid.New().String()
}
