package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/efreitasn/minibroker/internal/domain"
)

// InstrumentStore tracks instruments in a thread-safe manner, indexed by
// id and by ticker. Stored instruments never carry a quote.
type InstrumentStore struct {
	mu       sync.RWMutex
	nextID   int64
	byID     map[int64]*domain.Instrument
	byTicker map[string]*domain.Instrument
}

// NewInstrumentStore creates an empty InstrumentStore.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		byID:     make(map[int64]*domain.Instrument),
		byTicker: make(map[string]*domain.Instrument),
	}
}

// Create registers an instrument, assigning its id when inst.ID is zero.
// Tickers are unique.
func (s *InstrumentStore) Create(inst *domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTicker[inst.Ticker]; exists {
		return fmt.Errorf("instrument %s already exists", inst.Ticker)
	}
	if inst.ID == 0 {
		s.nextID++
		inst.ID = s.nextID
	} else if inst.ID > s.nextID {
		s.nextID = inst.ID
	}
	stored := *inst
	stored.LatestQuote = nil
	s.byID[inst.ID] = &stored
	s.byTicker[inst.Ticker] = &stored
	return nil
}

// Get returns a copy of the instrument with the given id.
func (s *InstrumentStore) Get(id int64) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	c := *inst
	return &c, nil
}

// FindByTicker returns a copy of the instrument with the given ticker.
func (s *InstrumentStore) FindByTicker(ticker string) (*domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.byTicker[ticker]
	if !ok {
		return nil, domain.ErrInstrumentNotFound
	}
	c := *inst
	return &c, nil
}

// Search returns instruments whose ticker or name contains query,
// ignoring case, sorted by ticker. An empty query matches everything.
func (s *InstrumentStore) Search(query string) []*domain.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	out := make([]*domain.Instrument, 0)
	for _, inst := range s.byID {
		if q != "" &&
			!strings.Contains(strings.ToLower(inst.Ticker), q) &&
			!strings.Contains(strings.ToLower(inst.Name), q) {
			continue
		}
		c := *inst
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
