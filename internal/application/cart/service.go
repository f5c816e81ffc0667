package cart

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mochizuki-dev/marketplace/internal/domain/cart"
	"github.com/mochizuki-dev/marketplace/internal/observability"
	"github.com/mochizuki-dev/marketplace/internal/observability/logctx"
)

const componentCartService = "cart_service"

var ErrRepository = errors.New("cart: repository failure")

// Service manages per-buyer carts. A buyer gets an empty cart on first
// touch; all mutations persist through the repository.
type Service struct {
	carts domain.Repository
	log   observability.Logger
}

func NewService(carts domain.Repository, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		carts: carts,
		log:   logger.With(observability.F("component", componentCartService)),
	}
}

func (s *Service) AddItem(ctx context.Context, buyerID, storeID, productID string, quantity int) error {
	return s.mutate(ctx, buyerID, func(c *domain.Cart) error {
		return c.AddItem(storeID, productID, quantity)
	})
}

func (s *Service) ChangeQuantity(ctx context.Context, buyerID, storeID, productID string, quantity int) error {
	return s.mutate(ctx, buyerID, func(c *domain.Cart) error {
		return c.ChangeQuantity(storeID, productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, buyerID, storeID, productID string) error {
	return s.mutate(ctx, buyerID, func(c *domain.Cart) error {
		c.RemoveItem(storeID, productID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, buyerID string) error {
	return s.mutate(ctx, buyerID, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *Service) Get(ctx context.Context, buyerID string) (*domain.Cart, error) {
	c, err := s.carts.FindByBuyer(ctx, buyerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.New(), nil
	case err != nil:
		return nil, fmt.Errorf("%w: find %s: %w", ErrRepository, buyerID, err)
	}
	return c, nil
}

func (s *Service) mutate(ctx context.Context, buyerID string, fn func(*domain.Cart) error) error {
	if buyerID == "" {
		return errors.New("cart: buyer id is required")
	}

	c, err := s.Get(ctx, buyerID)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if err := s.carts.Save(ctx, buyerID, c); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrRepository, buyerID, err)
	}

	logctx.FromOr(ctx, s.log).Debug("cart_updated",
		observability.F("buyer_id", buyerID),
		observability.F("items", c.TotalItemCount()),
	)
	return nil
}
