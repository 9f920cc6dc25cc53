package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]User
	byID    map[string]string
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byEmail: make(map[string]User),
		byID:    make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	r.byEmail[user.Email] = user
	r.byID[user.ID] = user.Email
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.byEmail[email], nil
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user := r.byEmail[email]
	user.TokenVersion = version
	r.byEmail[email] = user
	return nil
}

func (r *memoryRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	user := r.byEmail[email]
	user.LastLogin = at.UTC()
	r.byEmail[email] = user
	return nil
}
