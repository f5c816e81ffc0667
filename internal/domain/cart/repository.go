package cart

import "context"

type Repository interface {
	FindByBuyer(ctx context.Context, buyerID string) (*Cart, error)
	Save(ctx context.Context, buyerID string, cart *Cart) error
}
