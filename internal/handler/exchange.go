package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/venue/internal/domain"
	"github.com/efreitasn/venue/internal/exchange"
	"github.com/efreitasn/venue/internal/service"
)

// ExchangeHandler handles HTTP requests for exchange lifecycle and
// instrument registration endpoints.
type ExchangeHandler struct {
	svc *service.ExchangeService
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(svc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{svc: svc}
}

// createExchangeRequest is the JSON request body for POST /exchanges.
// The exchange id is optional; one is generated when absent.
type createExchangeRequest struct {
	ExchangeID string `json:"exchange_id"`
}

type createExchangeResponse struct {
	ExchangeID string `json:"exchange_id"`
}

// CreateExchange handles POST /exchanges.
func (h *ExchangeHandler) CreateExchange(w http.ResponseWriter, r *http.Request) {
	var req createExchangeRequest
	if r.ContentLength != 0 {
		if err := ParseJSON(r, &req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	events, err := h.svc.CreateExchange(r.Context(), domain.ExchangeID(req.ExchangeID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created := events[0].(exchange.ExchangeCreated)
	WriteJSON(w, http.StatusCreated, createExchangeResponse{
		ExchangeID: string(created.ExchangeID),
	})
}

// registerInstrumentRequest is the JSON request body for
// POST /exchanges/{exchange_id}/instruments.
type registerInstrumentRequest struct {
	BaseCurrency    string `json:"base_currency"`
	CounterCurrency string `json:"counter_currency"`
}

type instrumentResponse struct {
	Symbol          string `json:"symbol"`
	BaseCurrency    string `json:"base_currency"`
	CounterCurrency string `json:"counter_currency"`
}

// RegisterInstrument handles POST /exchanges/{exchange_id}/instruments.
func (h *ExchangeHandler) RegisterInstrument(w http.ResponseWriter, r *http.Request) {
	exchangeID := domain.ExchangeID(chi.URLParam(r, "exchange_id"))

	var req registerInstrumentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	events, err := h.svc.Execute(r.Context(), exchangeID, exchange.RegisterInstrument{
		BaseCurrency:    req.BaseCurrency,
		CounterCurrency: req.CounterCurrency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	registered := events[0].(exchange.InstrumentRegistered)
	WriteJSON(w, http.StatusCreated, instrumentResponse{
		Symbol:          string(registered.InstrumentID),
		BaseCurrency:    registered.BaseCurrency,
		CounterCurrency: registered.CounterCurrency,
	})
}

// removeInstrumentResponse reports the removal and how many resting
// orders were cancelled with it.
type removeInstrumentResponse struct {
	Symbol          string `json:"symbol"`
	CancelledOrders int    `json:"cancelled_orders"`
}

// RemoveInstrument handles DELETE /exchanges/{exchange_id}/instruments/{symbol}.
func (h *ExchangeHandler) RemoveInstrument(w http.ResponseWriter, r *http.Request) {
	exchangeID := domain.ExchangeID(chi.URLParam(r, "exchange_id"))
	symbol := chi.URLParam(r, "symbol")

	events, err := h.svc.Execute(r.Context(), exchangeID, exchange.RemoveInstrument{
		InstrumentID: domain.InstrumentID(symbol),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	cancelled := 0
	for _, ev := range events {
		if _, ok := ev.(exchange.OrderCancelled); ok {
			cancelled++
		}
	}
	WriteJSON(w, http.StatusOK, removeInstrumentResponse{
		Symbol:          symbol,
		CancelledOrders: cancelled,
	})
}
