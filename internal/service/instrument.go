package service

import (
	"context"
	"strings"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
)

const maxSearchQueryLen = 64

// QuoteHistoryRequest selects a range of trading days. Empty bounds are
// open; dates use YYYY-MM-DD.
type QuoteHistoryRequest struct {
	Ticker string
	From   string
	To     string
}

// InstrumentService handles instrument search and market data queries.
type InstrumentService struct {
	catalog Catalog
}

// NewInstrumentService creates a new InstrumentService.
func NewInstrumentService(catalog Catalog) *InstrumentService {
	return &InstrumentService{catalog: catalog}
}

// Search returns instruments whose ticker or name contains query, ignoring
// case. An empty query returns every instrument.
func (s *InstrumentService) Search(ctx context.Context, query string) ([]*domain.Instrument, error) {
	query = strings.TrimSpace(query)
	if len(query) > maxSearchQueryLen {
		return nil, &domain.ValidationError{Message: "query must be at most 64 characters"}
	}
	return s.catalog.SearchInstruments(ctx, query)
}

// GetQuote returns the latest market data of ticker.
func (s *InstrumentService) GetQuote(ctx context.Context, ticker string) (*domain.Instrument, error) {
	inst, err := s.catalog.FindInstrumentWithLatestQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst.LatestQuote == nil {
		return nil, domain.ErrQuoteNotFound
	}
	return inst, nil
}

// GetQuoteHistory returns ticker's market data within the requested days,
// oldest first.
func (s *InstrumentService) GetQuoteHistory(ctx context.Context, req QuoteHistoryRequest) ([]*domain.MarketQuote, error) {
	from, err := parseDay("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDay("to", req.To)
	if err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, &domain.ValidationError{Message: "to must not be before from"}
	}
	return s.catalog.QuoteHistory(ctx, req.Ticker, from, to)
}

func parseDay(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Message: field + " must be a date in YYYY-MM-DD format"}
	}
	return d, nil
}
