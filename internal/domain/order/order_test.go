package order

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("order-1", "store-1", NewBuyer("alice"), map[string]int{"prod-1": 2}, 20.0, 20.0)
	require.NoError(t, err)
	return o
}

func TestNew_TakesImmutableSnapshot(t *testing.T) {
	items := map[string]int{"prod-1": 2}
	o, err := New("order-1", "store-1", NewBuyer("alice"), items, 20.0, 20.0)
	require.NoError(t, err)

	items["prod-1"] = 99
	items["prod-2"] = 1
	require.Equal(t, map[string]int{"prod-1": 2}, o.Items())

	snapshot := o.Items()
	snapshot["prod-1"] = 0
	require.Equal(t, map[string]int{"prod-1": 2}, o.Items())
}

func TestNew_Validation(t *testing.T) {
	_, err := New("order-1", "store-1", NewBuyer("alice"), nil, 0, 0)
	require.ErrorIs(t, err, ErrNoItems)

	_, err = New("order-1", "store-1", NewBuyer("alice"), map[string]int{"prod-1": 1}, 10.0, 11.0)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestTransitions_HappyPath(t *testing.T) {
	o := newTestOrder(t)

	require.Equal(t, StatusPending, o.Status)
	require.True(t, o.MarkPaid())
	require.True(t, o.MarkShipped())
	require.True(t, o.MarkCompleted())
	require.True(t, o.IsTerminal())
}

func TestTransitions_IllegalMovesAreRefused(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
	}{
		{"pending to shipped", StatusPending, StatusShipped},
		{"pending to completed", StatusPending, StatusCompleted},
		{"paid to completed", StatusPaid, StatusCompleted},
		{"shipped to canceled", StatusShipped, StatusCanceled},
		{"completed to anything", StatusCompleted, StatusPaid},
		{"canceled to anything", StatusCanceled, StatusPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := newTestOrder(t)
			o.Status = tc.from

			require.False(t, o.TransitionTo(tc.to))
			require.Equal(t, tc.from, o.Status)
		})
	}
}

func TestCancel_OnlyFromPendingOrPaid(t *testing.T) {
	o := newTestOrder(t)
	require.True(t, o.CanCancel())
	require.True(t, o.Cancel())
	require.Equal(t, StatusCanceled, o.Status)

	o = newTestOrder(t)
	require.True(t, o.MarkPaid())
	require.True(t, o.CanCancel())
	require.True(t, o.Cancel())

	o = newTestOrder(t)
	o.Status = StatusShipped
	require.False(t, o.CanCancel())
	require.False(t, o.Cancel())
	require.Equal(t, StatusShipped, o.Status)
}

func TestSetDeliveryTracking_RequiresPaidOrLater(t *testing.T) {
	o := newTestOrder(t)

	require.False(t, o.SetDeliveryTracking("TRK-1"))
	require.Empty(t, o.ShipmentRef)

	require.True(t, o.MarkPaid())
	require.True(t, o.SetDeliveryTracking("TRK-1"))
	require.Equal(t, "TRK-1", o.ShipmentRef)

	o.Status = StatusCanceled
	require.False(t, o.SetDeliveryTracking("TRK-2"))
	require.Equal(t, "TRK-1", o.ShipmentRef)
}

func TestBuyer(t *testing.T) {
	require.Equal(t, "alice", NewBuyer("alice").String())
	require.False(t, NewBuyer("alice").Guest)

	g := GuestBuyer()
	require.True(t, g.Guest)
	require.Equal(t, "guest", g.String())
}

func TestClone_DoesNotShareItems(t *testing.T) {
	o := newTestOrder(t)
	clone := o.Clone()

	require.True(t, clone.MarkPaid())
	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, o.Items(), clone.Items())
}
