package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/engine"
	"github.com/efreitasn/venue/internal/projection"
)

// defaultDepth is the number of price levels returned when the caller
// doesn't specify one.
const defaultDepth = 10

// MarketHandler serves the read-model endpoints. All data comes from
// the projection, never from aggregate state.
type MarketHandler struct {
	proj *projection.Projection
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(proj *projection.Projection) *MarketHandler {
	return &MarketHandler{proj: proj}
}

// ListInstruments handles GET /exchanges/{exchange_id}/instruments.
func (h *MarketHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	exchangeID := domain.ExchangeID(chi.URLParam(r, "exchange_id"))

	instruments, err := h.proj.Instruments(exchangeID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]instrumentResponse, 0, len(instruments))
	for _, instrument := range instruments {
		out = append(out, instrumentResponse{
			Symbol:          string(instrument.ID),
			BaseCurrency:    instrument.BaseCurrency,
			CounterCurrency: instrument.CounterCurrency,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"instruments": out})
}

// priceLevelResponse is one aggregated price level of the book.
type priceLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// GetBook handles GET /exchanges/{exchange_id}/instruments/{symbol}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	exchangeID := domain.ExchangeID(chi.URLParam(r, "exchange_id"))
	symbol := chi.URLParam(r, "symbol")

	depth := defaultDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeDomainError(w, &domain.ValidationError{Message: "depth must be a positive integer"})
			return
		}
		depth = n
	}

	bids, asks, err := h.proj.Depth(exchangeID, domain.InstrumentID(symbol), depth)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"bids":   buildLevels(bids),
		"asks":   buildLevels(asks),
	})
}

func buildLevels(levels []engine.PriceLevel) []priceLevelResponse {
	out := make([]priceLevelResponse, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, priceLevelResponse{
			Price:         domain.FromMinorUnits(lvl.Price),
			TotalQuantity: lvl.TotalQuantity,
			OrderCount:    lvl.OrderCount,
		})
	}
	return out
}

// GetTrades handles GET /exchanges/{exchange_id}/instruments/{symbol}/trades.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	exchangeID := domain.ExchangeID(chi.URLParam(r, "exchange_id"))
	symbol := chi.URLParam(r, "symbol")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeDomainError(w, &domain.ValidationError{Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	trades, err := h.proj.Trades(exchangeID, domain.InstrumentID(symbol), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, tradeResponse{
			TradeID:     t.TradeID,
			BuyOrderID:  t.BuyOrderID,
			SellOrderID: t.SellOrderID,
			Price:       domain.FromMinorUnits(t.Price),
			Quantity:    t.Quantity,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"symbol": symbol,
		"trades": out,
	})
}
