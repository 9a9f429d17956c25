package store

import (
	"fmt"
	"sync"

	"github.com/efreitasn/minibroker/internal/domain"
)

// AccountStore is a thread-safe in-memory store for accounts,
// keyed by id with a secondary index by account number.
type AccountStore struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]*domain.Account
	byNumber map[string]*domain.Account
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[int64]*domain.Account),
		byNumber: make(map[string]*domain.Account),
	}
}

// Create adds an account, assigning its id when a.ID is zero. It returns an
// error if the account number is already taken.
func (s *AccountStore) Create(a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[a.AccountNumber]; exists {
		return fmt.Errorf("account %s already exists", a.AccountNumber)
	}
	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}
	s.accounts[a.ID] = a
	s.byNumber[a.AccountNumber] = a
	return nil
}

// Get retrieves an account by id. It returns
// domain.ErrAccountNotFound if the account does not exist.
func (s *AccountStore) Get(id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}

// FindByNumber retrieves an account by its external account number.
func (s *AccountStore) FindByNumber(number string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byNumber[number]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a, nil
}
