package wallet

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	byOwner  map[string]Wallet
	byNumber map[string]Wallet
}

// NewMemoryRepository constructs an in-memory repository for tests and dev
// mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byOwner:  make(map[string]Wallet),
		byNumber: make(map[string]Wallet),
	}
}

func (r *memoryRepository) Create(_ context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOwner[w.OwnerID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := r.byNumber[w.WalletNumber]; exists {
		return ErrNumberTaken
	}
	r.byOwner[w.OwnerID] = w
	r.byNumber[w.WalletNumber] = w
	return nil
}

func (r *memoryRepository) FindByOwner(_ context.Context, ownerID string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *memoryRepository) FindByNumber(_ context.Context, number string) (Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byNumber[number]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}
