package domain

import "errors"

// Sentinel errors for domain-level error handling. Command handling
// detects all of them before any event is produced, so a failed command
// never reaches the event log. The handler layer maps these to HTTP
// status codes.
var (
	ErrExchangeExists      = errors.New("exchange_exists")
	ErrExchangeNotFound    = errors.New("exchange_not_found")
	ErrDuplicateInstrument = errors.New("duplicate_instrument")
	ErrNoSuchInstrument    = errors.New("no_such_instrument")
	ErrInvalidOrder        = errors.New("invalid_order")
	ErrInvalidCommand      = errors.New("invalid_command")
	ErrNoLiquidity         = errors.New("no_liquidity")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
