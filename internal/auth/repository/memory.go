package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"writingstuff/internal/auth/model"
	"writingstuff/pkg/apperror"
)

// MemoryAccountRepository backs the "memory" database driver and tests.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	byID     map[string]*model.Account
	username map[string]string
	email    map[string]string
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:     make(map[string]*model.Account),
		username: make(map[string]string),
		email:    make(map[string]string),
	}
}

func (r *MemoryAccountRepository) Create(_ context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, takenName := r.username[a.Username]
	_, takenEmail := r.email[a.Email]
	if takenName || takenEmail {
		return fmt.Errorf("username or email already registered: %w", apperror.ErrConflict)
	}

	a.CreatedAt = time.Now().UTC()
	stored := *a
	r.byID[a.ID] = &stored
	r.username[a.Username] = a.ID
	r.email[a.Email] = a.ID
	return nil
}

func (r *MemoryAccountRepository) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.username[username])
}

func (r *MemoryAccountRepository) FindByEmail(_ context.Context, email string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.email[email])
}

func (r *MemoryAccountRepository) FindByID(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

func (r *MemoryAccountRepository) lookup(id string) (*model.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *a
	return &cp, nil
}
