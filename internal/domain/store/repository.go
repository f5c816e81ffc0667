package store

import "context"

type Repository interface {
	FindByID(ctx context.Context, id string) (*Store, error)
	Save(ctx context.Context, store *Store) error
	Exists(ctx context.Context, id string) (bool, error)
	IsActive(ctx context.Context, id string) (bool, error)
}
