package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"writingstuff/internal/document/model"
	"writingstuff/pkg/apperror"
)

// MemoryDocumentRepository backs the "memory" database driver and tests.
type MemoryDocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
	now  func() time.Time
}

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{
		docs: make(map[string]*model.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryDocumentRepository) Create(_ context.Context, d *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[d.ID]; ok {
		return fmt.Errorf("document %s exists: %w", d.ID, apperror.ErrConflict)
	}
	if d.IdempotencyKey != "" {
		if _, err := r.byKey(d.OwnerID, d.IdempotencyKey); err == nil {
			return fmt.Errorf("idempotency key already used: %w", apperror.ErrConflict)
		}
	}

	now := r.now()
	d.Version = 1
	d.CreatedAt = now
	d.UpdatedAt = now
	stored := *d
	r.docs[d.ID] = &stored
	return nil
}

func (r *MemoryDocumentRepository) FindByIdempotencyKey(_ context.Context, ownerID, key string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byKey(ownerID, key)
}

func (r *MemoryDocumentRepository) byKey(ownerID, key string) (*model.Document, error) {
	for _, d := range r.docs {
		if d.OwnerID == ownerID && d.IdempotencyKey == key {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *MemoryDocumentRepository) Get(_ context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryDocumentRepository) ListByOwner(_ context.Context, ownerID string) ([]model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := []model.Document{}
	for _, d := range r.docs {
		if d.OwnerID == ownerID {
			cp := *d
			cp.Content = ""
			docs = append(docs, cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (r *MemoryDocumentRepository) UpdateContent(_ context.Context, id, content string, size int64) (int64, time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return 0, time.Time{}, apperror.ErrNotFound
	}
	d.Content = content
	d.Size = size
	d.Version++
	d.UpdatedAt = r.now()
	return d.Version, d.UpdatedAt, nil
}

func (r *MemoryDocumentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}
