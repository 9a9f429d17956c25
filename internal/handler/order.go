package handler

import (
	"net/http"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
// Absent and null fields decode to nil; amount and price accept JSON
// numbers or numeric strings.
type submitOrderRequest struct {
	AccountNumber string           `json:"account_number"`
	Type          string           `json:"type"`
	Side          string           `json:"side"`
	Ticker        *string          `json:"ticker"`
	Size          *int64           `json:"size"`
	Amount        *decimal.Decimal `json:"amount"`
	Price         *decimal.Decimal `json:"price"`
}

// orderResponse is the JSON representation of a ledger entry.
type orderResponse struct {
	OrderID   string  `json:"order_id"`
	Ticker    string  `json:"ticker"`
	Type      string  `json:"type"`
	Side      string  `json:"side"`
	Size      int64   `json:"size"`
	Price     float64 `json:"price"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

// SubmitOrder handles POST /orders. Filled and rejected orders are both
// created resources and answer 201.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(r.Context(), service.SubmitOrderRequest{
		AccountNumber: req.AccountNumber,
		Type:          domain.OrderType(req.Type),
		Side:          domain.OrderSide(req.Side),
		Ticker:        req.Ticker,
		Size:          req.Size,
		Amount:        req.Amount,
		Price:         req.Price,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(r.Context(), orderID)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

func buildOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:   o.ID,
		Type:      string(o.Type),
		Side:      string(o.Side),
		Size:      o.Size,
		Price:     domain.ToFloat(o.Price),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC().Format(timeFormat),
	}
	if o.Instrument != nil {
		resp.Ticker = o.Instrument.Ticker
	}
	return resp
}
