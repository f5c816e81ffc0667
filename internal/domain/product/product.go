package product

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("product: not found")

// Product carries the catalog data the checkout needs: per-item price for
// totals and unit weight for shipment estimates.
type Product struct {
	ID      string
	StoreID string
	Name    string
	Price   float64
	Weight  float64
}

type Repository interface {
	FindByID(ctx context.Context, id string) (*Product, error)
	Save(ctx context.Context, product *Product) error
}
