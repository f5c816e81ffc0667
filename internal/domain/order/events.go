package order

import "time"

// OrderCreatedEvent is emitted for each pending order created by a checkout.
type OrderCreatedEvent struct {
	OrderID    string
	StoreID    string
	Buyer      string
	TotalPrice float64
	OccurredAt time.Time
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:    o.ID,
		StoreID:    o.StoreID,
		Buyer:      o.Buyer.String(),
		TotalPrice: o.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCanceledEvent is emitted when an order is canceled, whether by the
// buyer or by checkout compensation.
type OrderCanceledEvent struct {
	OrderID    string
	StoreID    string
	OccurredAt time.Time
}

func (OrderCanceledEvent) EventName() string { return "order.canceled" }

func NewOrderCanceledEvent(o *Order) OrderCanceledEvent {
	return OrderCanceledEvent{
		OrderID:    o.ID,
		StoreID:    o.StoreID,
		OccurredAt: time.Now().UTC(),
	}
}

// CheckoutCompletedEvent is emitted once per successful checkout covering
// every order it produced.
type CheckoutCompletedEvent struct {
	OrderIDs    []string
	PaymentRef  string
	TotalAmount float64
	OccurredAt  time.Time
}

func (CheckoutCompletedEvent) EventName() string { return "checkout.completed" }

// CheckoutFailedEvent is emitted when a checkout fails after side effects
// had to be compensated.
type CheckoutFailedEvent struct {
	Stage      string
	Reason     string
	OccurredAt time.Time
}

func (CheckoutFailedEvent) EventName() string { return "checkout.failed" }
