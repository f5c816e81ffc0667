package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddItem_AccumulatesQuantity(t *testing.T) {
	c := New()

	require.NoError(t, c.AddItem("store-1", "prod-1", 2))
	require.NoError(t, c.AddItem("store-1", "prod-1", 3))

	require.Equal(t, map[string]int{"prod-1": 5}, c.Baskets()["store-1"])
	require.Equal(t, 5, c.TotalItemCount())
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	c := New()

	require.ErrorIs(t, c.AddItem("store-1", "prod-1", 0), ErrInvalidQuantity)
	require.ErrorIs(t, c.AddItem("store-1", "prod-1", -1), ErrInvalidQuantity)
	require.True(t, c.IsEmpty())
}

func TestChangeQuantity(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem("store-1", "prod-1", 2))

	t.Run("replaces quantity", func(t *testing.T) {
		require.NoError(t, c.ChangeQuantity("store-1", "prod-1", 7))
		require.Equal(t, 7, c.Baskets()["store-1"]["prod-1"])
	})

	t.Run("negative is rejected", func(t *testing.T) {
		require.ErrorIs(t, c.ChangeQuantity("store-1", "prod-1", -2), ErrInvalidQuantity)
		require.Equal(t, 7, c.Baskets()["store-1"]["prod-1"])
	})

	t.Run("unknown store is a no-op", func(t *testing.T) {
		require.NoError(t, c.ChangeQuantity("store-9", "prod-1", 3))
		require.NotContains(t, c.Baskets(), "store-9")
	})

	t.Run("zero removes the item and prunes the basket", func(t *testing.T) {
		require.NoError(t, c.ChangeQuantity("store-1", "prod-1", 0))
		require.True(t, c.IsEmpty())
	})
}

func TestRemoveItem_PrunesEmptyBasket(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem("store-1", "prod-1", 1))

	c.RemoveItem("store-1", "prod-1")

	require.True(t, c.IsEmpty())
	require.NotContains(t, c.Baskets(), "store-1")
}

func TestClear_IsIdempotent(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem("store-1", "prod-1", 1))

	c.Clear()
	require.True(t, c.IsEmpty())

	c.Clear()
	require.True(t, c.IsEmpty())
}

func TestBaskets_ReturnsDefensiveCopies(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem("store-1", "prod-1", 2))

	snapshot := c.Baskets()
	snapshot["store-1"]["prod-1"] = 99
	snapshot["store-2"] = map[string]int{"prod-9": 1}

	require.Equal(t, map[string]int{"prod-1": 2}, c.Baskets()["store-1"])
	require.NotContains(t, c.Baskets(), "store-2")
}

func TestClone_IsIndependent(t *testing.T) {
	c := New()
	require.NoError(t, c.AddItem("store-1", "prod-1", 2))

	clone := c.Clone()
	require.NoError(t, clone.AddItem("store-1", "prod-1", 5))
	clone.Clear()

	require.Equal(t, 2, c.TotalItemCount())
}

func TestBasket_SetQuantity(t *testing.T) {
	b := NewBasket("store-1")
	require.NoError(t, b.Add("prod-1", 2))

	require.NoError(t, b.SetQuantity("prod-1", 0))
	require.True(t, b.IsEmpty())
	require.ErrorIs(t, b.SetQuantity("prod-1", -1), ErrInvalidQuantity)
}
