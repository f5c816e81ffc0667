package order

import "context"

type Repository interface {
	Insert(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
	FindByStore(ctx context.Context, storeID string) ([]*Order, error)
	FindByBuyer(ctx context.Context, buyerName string) ([]*Order, error)
}
