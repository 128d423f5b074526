package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/exchange"
	"github.com/efreitasn/venue/internal/service"
)

// OrderHandler handles HTTP requests for order placement.
type OrderHandler struct {
	svc *service.ExchangeService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc *service.ExchangeService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// placeOrderRequest is the JSON request body for
// POST /exchanges/{exchange_id}/orders. Price is in major units
// (e.g. dollars) and required for limit orders only.
type placeOrderRequest struct {
	Symbol     string   `json:"symbol"`
	Side       string   `json:"side"`
	Type       string   `json:"type"`
	Price      *float64 `json:"price"`
	Quantity   int64    `json:"quantity"`
	Originator string   `json:"originator"`
}

// placeOrderResponse reports the disposition of the incoming order:
// the trades it produced and what, if anything, rests on the book.
type placeOrderResponse struct {
	OrderID         string          `json:"order_id"`
	Symbol          string          `json:"symbol"`
	Side            string          `json:"side"`
	Type            string          `json:"type"`
	Price           *float64        `json:"price,omitempty"`
	Quantity        int64           `json:"quantity"`
	FilledQuantity  int64           `json:"filled_quantity"`
	RestingQuantity int64           `json:"resting_quantity"`
	Status          string          `json:"status"`
	Trades          []tradeResponse `json:"trades"`
}

type tradeResponse struct {
	TradeID     string  `json:"trade_id"`
	BuyOrderID  string  `json:"buy_order_id"`
	SellOrderID string  `json:"sell_order_id"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
}

// PlaceOrder handles POST /exchanges/{exchange_id}/orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	exchangeID := domain.ExchangeID(chi.URLParam(r, "exchange_id"))

	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var price *int64
	if req.Price != nil {
		p, err := domain.ToMinorUnits(*req.Price)
		if err != nil {
			writeDomainError(w, &domain.ValidationError{Message: err.Error()})
			return
		}
		price = &p
	}

	events, err := h.svc.Execute(r.Context(), exchangeID, exchange.PlaceOrder{
		Descriptor: domain.OrderDescriptor{
			Symbol:     req.Symbol,
			Side:       domain.Side(req.Side),
			Type:       domain.OrderType(req.Type),
			Price:      price,
			Quantity:   req.Quantity,
			Originator: req.Originator,
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildPlaceOrderResponse(events))
}

// buildPlaceOrderResponse folds the emitted events into the caller's
// view of the order: OrderPlaced carries the acceptance, TradeExecuted
// the fills, OrderRested the remainder left on the book.
func buildPlaceOrderResponse(events []exchange.Event) placeOrderResponse {
	var resp placeOrderResponse
	resp.Trades = []tradeResponse{}

	for _, ev := range events {
		switch e := ev.(type) {
		case exchange.OrderPlaced:
			resp.OrderID = e.OrderID
			resp.Symbol = string(e.InstrumentID)
			resp.Side = string(e.Side)
			resp.Type = string(e.Type)
			resp.Quantity = e.Quantity
			if e.Price != nil {
				p := domain.FromMinorUnits(*e.Price)
				resp.Price = &p
			}
		case exchange.TradeExecuted:
			resp.FilledQuantity += e.Quantity
			resp.Trades = append(resp.Trades, tradeResponse{
				TradeID:     e.TradeID,
				BuyOrderID:  e.BuyOrderID,
				SellOrderID: e.SellOrderID,
				Price:       domain.FromMinorUnits(e.Price),
				Quantity:    e.Quantity,
			})
		case exchange.OrderRested:
			resp.RestingQuantity = e.Quantity
		}
	}

	switch {
	case resp.FilledQuantity == resp.Quantity:
		resp.Status = "filled"
	case resp.FilledQuantity > 0:
		resp.Status = "partially_filled"
	default:
		resp.Status = "open"
	}
	return resp
}
