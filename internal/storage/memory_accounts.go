package storage

import (
	"context"
	"sync"

	"github.com/huddle/backend/internal/models"
)

// MemoryAccountStore keeps accounts keyed by normalized email.
type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	snapshot *JSONStore
}

func NewMemoryAccountStore(dataDir string) (*MemoryAccountStore, error) {
	snap, err := NewJSONStore(dataDir, "accounts.json")
	if err != nil {
		return nil, err
	}
	s := &MemoryAccountStore{
		accounts: make(map[string]models.Account),
		snapshot: snap,
	}
	if err := snap.Load(&s.accounts); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryAccountStore) Create(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.NormalizeEmail(account.Email)
	if _, exists := s.accounts[key]; exists {
		return ErrDuplicate
	}
	for _, a := range s.accounts {
		if a.ID == account.ID {
			return ErrDuplicate
		}
	}
	s.accounts[key] = *account
	if err := s.snapshot.Save(s.accounts); err != nil {
		delete(s.accounts, key)
		return err
	}
	return nil
}

func (s *MemoryAccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[models.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}
