package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mochizuki-dev/marketplace/internal/domain/store"
	"github.com/mochizuki-dev/marketplace/internal/observability"
	"github.com/mochizuki-dev/marketplace/internal/observability/logctx"
)

const componentGuard = "inventory_guard"

var ErrRepository = errors.New("inventory: store repository failure")

// Guard enforces stock invariants during reservation and restoration.
// Every read-check-write on a store's stock runs under that store's lock, so
// two checkouts racing for the last unit serialize and exactly one wins.
type Guard struct {
	stores store.Repository
	locks  sync.Map // store id -> *sync.Mutex
	log    observability.Logger
}

func NewGuard(stores store.Repository, logger observability.Logger) *Guard {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Guard{
		stores: stores,
		log:    logger.With(observability.F("component", componentGuard)),
	}
}

// Validate checks a batch of items against one store's live stock without
// mutating anything. An empty slice means the batch is valid.
func (g *Guard) Validate(ctx context.Context, storeID string, items map[string]int) ([]string, error) {
	mu := g.lock(storeID)
	mu.Lock()
	defer mu.Unlock()

	st, problems, err := g.load(ctx, storeID)
	if err != nil || problems != nil {
		return problems, err
	}
	return st.Validate(items), nil
}

// Reserve decrements the store's stock for the whole batch, or not at all.
// The returned problems carry the complete diagnostic for the batch.
func (g *Guard) Reserve(ctx context.Context, storeID string, items map[string]int) ([]string, error) {
	mu := g.lock(storeID)
	mu.Lock()
	defer mu.Unlock()

	st, problems, err := g.load(ctx, storeID)
	if err != nil || problems != nil {
		return problems, err
	}

	if problems := st.Reserve(items); len(problems) > 0 {
		return problems, nil
	}
	if err := g.stores.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("%w: save %s: %w", ErrRepository, storeID, err)
	}

	logctx.FromOr(ctx, g.log).Debug("stock_reserved",
		observability.F("store_id", storeID),
		observability.F("items", len(items)),
	)
	return nil, nil
}

// Restore adds reserved quantities back after a compensation. The caller
// tracks which reservations succeeded so this runs at most once per
// reservation.
func (g *Guard) Restore(ctx context.Context, storeID string, items map[string]int) error {
	mu := g.lock(storeID)
	mu.Lock()
	defer mu.Unlock()

	st, err := g.stores.FindByID(ctx, storeID)
	if err != nil {
		return fmt.Errorf("%w: find %s: %w", ErrRepository, storeID, err)
	}

	st.Restore(items)
	if err := g.stores.Save(ctx, st); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrRepository, storeID, err)
	}

	logctx.FromOr(ctx, g.log).Debug("stock_restored",
		observability.F("store_id", storeID),
		observability.F("items", len(items)),
	)
	return nil
}

// load fetches the store, translating a missing store into a validation
// problem rather than a system error.
func (g *Guard) load(ctx context.Context, storeID string) (*store.Store, []string, error) {
	st, err := g.stores.FindByID(ctx, storeID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, []string{fmt.Sprintf("store %s: %s", storeID, store.ReasonStoreNotFound)}, nil
	case err != nil:
		return nil, nil, fmt.Errorf("%w: find %s: %w", ErrRepository, storeID, err)
	}
	return st, nil, nil
}

func (g *Guard) lock(storeID string) *sync.Mutex {
	mu, _ := g.locks.LoadOrStore(storeID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
