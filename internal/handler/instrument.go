package handler

import (
	"net/http"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/service"
	"github.com/go-chi/chi/v5"
)

// InstrumentHandler handles HTTP requests for instrument endpoints.
type InstrumentHandler struct {
	instrumentSvc *service.InstrumentService
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(instrumentSvc *service.InstrumentService) *InstrumentHandler {
	return &InstrumentHandler{instrumentSvc: instrumentSvc}
}

type instrumentResponse struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

type quoteResponse struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	PreviousClose float64 `json:"previous_close"`
}

// latestQuoteResponse is the JSON response for GET /instruments/{ticker}/quote.
type latestQuoteResponse struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	quoteResponse
}

// quoteHistoryResponse is the JSON response for GET /instruments/{ticker}/quotes.
type quoteHistoryResponse struct {
	Ticker string          `json:"ticker"`
	Quotes []quoteResponse `json:"quotes"`
}

// Search handles GET /instruments?query=.
func (h *InstrumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.instrumentSvc.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		mapError(w, err)
		return
	}

	resp := make([]instrumentResponse, len(instruments))
	for i, inst := range instruments {
		resp[i] = instrumentResponse{
			Ticker: inst.Ticker,
			Name:   inst.Name,
			Type:   string(inst.Type),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetQuote handles GET /instruments/{ticker}/quote.
func (h *InstrumentHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	inst, err := h.instrumentSvc.GetQuote(r.Context(), ticker)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, latestQuoteResponse{
		Ticker:        inst.Ticker,
		Name:          inst.Name,
		quoteResponse: buildQuoteResponse(inst.LatestQuote),
	})
}

// GetQuoteHistory handles GET /instruments/{ticker}/quotes?from=&to=.
func (h *InstrumentHandler) GetQuoteHistory(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	quotes, err := h.instrumentSvc.GetQuoteHistory(r.Context(), service.QuoteHistoryRequest{
		Ticker: ticker,
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
	})
	if err != nil {
		mapError(w, err)
		return
	}

	resp := make([]quoteResponse, len(quotes))
	for i, q := range quotes {
		resp[i] = buildQuoteResponse(q)
	}
	WriteJSON(w, http.StatusOK, quoteHistoryResponse{
		Ticker: ticker,
		Quotes: resp,
	})
}

func buildQuoteResponse(q *domain.MarketQuote) quoteResponse {
	return quoteResponse{
		Date:          q.Date.UTC().Format("2006-01-02"),
		Open:          domain.ToFloat(q.Open),
		High:          domain.ToFloat(q.High),
		Low:           domain.ToFloat(q.Low),
		Close:         domain.ToFloat(q.Close),
		PreviousClose: domain.ToFloat(q.PreviousClose),
	}
}
