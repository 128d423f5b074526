package domain

// Trade is the outcome of matching an incoming order against a resting
// one. It is not aggregate state: the exchange emits it for external
// settlement and read-model consumers.
type Trade struct {
	TradeID      string
	InstrumentID InstrumentID
	BuyOrderID   string
	SellOrderID  string
	Quantity     int64
	Price        int64 // the resting order's price
}
