package store

import (
	"sync"
	"time"

	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/google/btree"
)

// quoteLess orders quotes by trading date ascending, so Max() is the
// latest quote.
func quoteLess(a, b *domain.MarketQuote) bool {
	return a.Date.Before(b.Date)
}

// MarketDataStore is a thread-safe in-memory store of daily quotes, keyed
// by instrument. Each instrument keeps a B-tree ordered by date holding at
// most one quote per day.
type MarketDataStore struct {
	mu     sync.RWMutex
	nextID int64
	quotes map[int64]*btree.BTreeG[*domain.MarketQuote] // instrument_id → quotes by date
}

// NewMarketDataStore creates an empty MarketDataStore.
func NewMarketDataStore() *MarketDataStore {
	return &MarketDataStore{
		quotes: make(map[int64]*btree.BTreeG[*domain.MarketQuote]),
	}
}

// Upsert stores q, replacing any quote of the same instrument and day.
// The date is truncated to the day in UTC.
func (s *MarketDataStore) Upsert(q *domain.MarketQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const degree = 32
	tree, ok := s.quotes[q.InstrumentID]
	if !ok {
		tree = btree.NewG[*domain.MarketQuote](degree, quoteLess)
		s.quotes[q.InstrumentID] = tree
	}

	c := *q
	c.Date = truncateDay(q.Date)
	if prev, found := tree.Get(&c); found {
		c.ID = prev.ID
	} else if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	}
	tree.ReplaceOrInsert(&c)
}

// Latest returns a copy of the most recent quote for the instrument, or
// (nil, false) if none exists.
func (s *MarketDataStore) Latest(instrumentID int64) (*domain.MarketQuote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.quotes[instrumentID]
	if !ok {
		return nil, false
	}
	q, ok := tree.Max()
	if !ok {
		return nil, false
	}
	c := *q
	return &c, true
}

// History returns the instrument's quotes between from and to inclusive,
// oldest first. Zero bounds are open.
func (s *MarketDataStore) History(instrumentID int64, from, to time.Time) []*domain.MarketQuote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.MarketQuote, 0)
	tree, ok := s.quotes[instrumentID]
	if !ok {
		return out
	}
	from, to = truncateDay(from), truncateDay(to)
	tree.Ascend(func(q *domain.MarketQuote) bool {
		if !from.IsZero() && q.Date.Before(from) {
			return true
		}
		if !to.IsZero() && q.Date.After(to) {
			return false
		}
		c := *q
		out = append(out, &c)
		return true
	})
	return out
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
