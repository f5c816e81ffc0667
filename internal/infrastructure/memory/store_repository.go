package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/mochizuki-dev/marketplace/internal/domain/store"
)

type StoreRepository struct {
	mu     sync.RWMutex
	stores map[string]*domain.Store
}

func NewStoreRepository() *StoreRepository {
	return &StoreRepository{
		stores: make(map[string]*domain.Store),
	}
}

func (r *StoreRepository) FindByID(ctx context.Context, id string) (*domain.Store, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return store.Clone(), nil
}

func (r *StoreRepository) Save(ctx context.Context, store *domain.Store) error {
	_ = ctx
	if store == nil || store.ID == "" {
		return fmt.Errorf("store repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stores[store.ID] = store.Clone()
	return nil
}

func (r *StoreRepository) Exists(ctx context.Context, id string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.stores[id]
	return ok, nil
}

func (r *StoreRepository) IsActive(ctx context.Context, id string) (bool, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	return store.Active, nil
}
