package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/mochizuki-dev/marketplace/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) FindByBuyer(ctx context.Context, buyerID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[buyerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cart.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, buyerID string, cart *domain.Cart) error {
	_ = ctx
	if buyerID == "" {
		return fmt.Errorf("cart repository: buyer id is required")
	}
	if cart == nil {
		return fmt.Errorf("cart repository: cart is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[buyerID] = cart.Clone()
	return nil
}
