package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("order: not found")
	ErrConflict     = errors.New("order: already exists")
	ErrNoItems      = errors.New("order: at least one item is required")
	ErrInvalidPrice = errors.New("order: final price must not exceed total price")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// transitions is the full set of legal status moves. Anything absent here is
// refused, not an error.
var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCanceled},
	StatusPaid:    {StatusShipped, StatusCanceled},
	StatusShipped: {StatusCompleted},
}

// Buyer identifies who placed an order: a registered username or a transient
// guest marker.
type Buyer struct {
	Name  string
	Guest bool
}

func NewBuyer(username string) Buyer { return Buyer{Name: username} }

func GuestBuyer() Buyer { return Buyer{Name: "guest", Guest: true} }

func (b Buyer) String() string { return b.Name }

// Order is one store's share of a checkout. The item snapshot is taken at
// construction and never changes afterwards; canceled orders are retained
// for audit.
type Order struct {
	ID          string
	StoreID     string
	Buyer       Buyer
	items       map[string]int
	TotalPrice  float64
	FinalPrice  float64
	CreatedAt   time.Time
	Status      Status
	PaymentRef  string
	ShipmentRef string
}

func New(id, storeID string, buyer Buyer, items map[string]int, totalPrice, finalPrice float64) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if finalPrice > totalPrice {
		return nil, ErrInvalidPrice
	}

	snapshot := make(map[string]int, len(items))
	for productID, qty := range items {
		snapshot[productID] = qty
	}

	return &Order{
		ID:         id,
		StoreID:    storeID,
		Buyer:      buyer,
		items:      snapshot,
		TotalPrice: totalPrice,
		FinalPrice: finalPrice,
		CreatedAt:  time.Now().UTC(),
		Status:     StatusPending,
	}, nil
}

// Items returns a copy of the immutable item snapshot.
func (o *Order) Items() map[string]int {
	out := make(map[string]int, len(o.items))
	for productID, qty := range o.items {
		out[productID] = qty
	}
	return out
}

// TransitionTo moves the order to the next status when the move is legal.
// An illegal move returns false and leaves the status unchanged.
func (o *Order) TransitionTo(next Status) bool {
	for _, allowed := range transitions[o.Status] {
		if allowed == next {
			o.Status = next
			return true
		}
	}
	return false
}

func (o *Order) MarkPaid() bool      { return o.TransitionTo(StatusPaid) }
func (o *Order) MarkShipped() bool   { return o.TransitionTo(StatusShipped) }
func (o *Order) MarkCompleted() bool { return o.TransitionTo(StatusCompleted) }
func (o *Order) Cancel() bool        { return o.TransitionTo(StatusCanceled) }

func (o *Order) CanCancel() bool {
	return o.Status == StatusPending || o.Status == StatusPaid
}

func (o *Order) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusCanceled
}

func (o *Order) SetPaymentReference(ref string) {
	o.PaymentRef = ref
}

// SetDeliveryTracking attaches a shipment reference. Tracking is meaningless
// for an unpaid order, so the call is refused while the order is pending or
// canceled.
func (o *Order) SetDeliveryTracking(ref string) bool {
	switch o.Status {
	case StatusPaid, StatusShipped, StatusCompleted:
		o.ShipmentRef = ref
		return true
	default:
		return false
	}
}

func (o *Order) Clone() *Order {
	clone := *o
	clone.items = o.Items()
	return &clone
}
