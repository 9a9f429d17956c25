package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/service"
	"github.com/go-chi/chi/v5"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService, orderSvc *service.OrderService) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
	}
}

// balanceResponse is the JSON response for GET /accounts/{account_number}/balance.
type balanceResponse struct {
	AccountNumber string  `json:"account_number"`
	Currency      string  `json:"currency"`
	CashAvailable float64 `json:"cash_available"`
}

// assetResponse is a single holding in the portfolio response.
type assetResponse struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	SharesAmount int64   `json:"shares_amount"`
	TotalValue   float64 `json:"total_value"`
	Performance  float64 `json:"performance"`
}

// portfolioResponse is the JSON response for GET /accounts/{account_number}/portfolio.
type portfolioResponse struct {
	AccountNumber string          `json:"account_number"`
	AccountTotal  float64         `json:"account_total"`
	CashAvailable float64         `json:"cash_available"`
	Assets        []assetResponse `json:"assets"`
}

// orderListResponse is the JSON response for GET /accounts/{account_number}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// GetBalance handles GET /accounts/{account_number}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "account_number")

	balance, err := h.accountSvc.GetCashBalance(r.Context(), accountNumber)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		AccountNumber: balance.AccountNumber,
		Currency:      balance.Currency,
		CashAvailable: domain.ToFloat(balance.CashAvailable),
	})
}

// GetPortfolio handles GET /accounts/{account_number}/portfolio.
func (h *AccountHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "account_number")

	p, err := h.accountSvc.GetPortfolio(r.Context(), accountNumber)
	if err != nil {
		mapError(w, err)
		return
	}

	assets := make([]assetResponse, len(p.Assets))
	for i, a := range p.Assets {
		assets[i] = assetResponse{
			Ticker:       a.Instrument.Ticker,
			Name:         a.Instrument.Name,
			SharesAmount: a.Shares,
			TotalValue:   domain.ToFloat(a.TotalValue),
			Performance:  domain.ToFloat(a.Performance),
		}
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		AccountNumber: p.Account.AccountNumber,
		AccountTotal:  domain.ToFloat(p.AccountTotal),
		CashAvailable: domain.ToFloat(p.CashAvailable),
		Assets:        assets,
	})
}

// ListOrders handles GET /accounts/{account_number}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "account_number")

	// Parse query params.
	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	orders, total, err := h.orderSvc.ListOrders(r.Context(), accountNumber, statusFilter, page, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}
