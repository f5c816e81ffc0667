package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/mochizuki-dev/marketplace/internal/domain/store"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/memory"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T, stores ...*store.Store) (*Guard, *memory.StoreRepository) {
	t.Helper()
	repo := memory.NewStoreRepository()
	for _, s := range stores {
		require.NoError(t, repo.Save(context.Background(), s))
	}
	return NewGuard(repo, nil), repo
}

func TestValidate_ReportsProblemsWithoutMutating(t *testing.T) {
	guard, repo := newTestGuard(t, store.New("store-1", "Books", map[string]int{"prod-1": 1}))

	problems, err := guard.Validate(context.Background(), "store-1", map[string]int{"prod-1": 2})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], store.ReasonInsufficientStock)

	st, err := repo.FindByID(context.Background(), "store-1")
	require.NoError(t, err)
	qty, _ := st.Stock("prod-1")
	require.Equal(t, 1, qty)
}

func TestValidate_UnknownStoreIsAProblemNotAnError(t *testing.T) {
	guard, _ := newTestGuard(t)

	problems, err := guard.Validate(context.Background(), "store-9", map[string]int{"prod-1": 1})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], store.ReasonStoreNotFound)
}

func TestReserve_PersistsDecrement(t *testing.T) {
	guard, repo := newTestGuard(t, store.New("store-1", "Books", map[string]int{"prod-1": 5}))

	problems, err := guard.Reserve(context.Background(), "store-1", map[string]int{"prod-1": 3})
	require.NoError(t, err)
	require.Empty(t, problems)

	st, err := repo.FindByID(context.Background(), "store-1")
	require.NoError(t, err)
	qty, _ := st.Stock("prod-1")
	require.Equal(t, 2, qty)
}

func TestReserve_InactiveStoreIsRejected(t *testing.T) {
	st := store.New("store-1", "Books", map[string]int{"prod-1": 5})
	st.Active = false
	guard, _ := newTestGuard(t, st)

	problems, err := guard.Reserve(context.Background(), "store-1", map[string]int{"prod-1": 1})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	require.Contains(t, problems[0], store.ReasonStoreNotActive)
}

func TestRestore_PersistsIncrement(t *testing.T) {
	guard, repo := newTestGuard(t, store.New("store-1", "Books", map[string]int{"prod-1": 0}))

	require.NoError(t, guard.Restore(context.Background(), "store-1", map[string]int{"prod-1": 4}))

	st, err := repo.FindByID(context.Background(), "store-1")
	require.NoError(t, err)
	qty, _ := st.Stock("prod-1")
	require.Equal(t, 4, qty)
}

// Two checkouts racing for the last unit must serialize: exactly one wins
// and stock ends at zero, never below.
func TestReserve_ConcurrentCheckoutsOnLastUnit(t *testing.T) {
	guard, repo := newTestGuard(t, store.New("store-1", "Books", map[string]int{"prod-1": 1}))

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			problems, err := guard.Reserve(context.Background(), "store-1", map[string]int{"prod-1": 1})
			require.NoError(t, err)
			if len(problems) == 0 {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1, "exactly one reservation wins")

	st, err := repo.FindByID(context.Background(), "store-1")
	require.NoError(t, err)
	qty, _ := st.Stock("prod-1")
	require.Equal(t, 0, qty)
}
