package supply

import "context"

// Details describes one order's shipment, derived from order contents.
type Details struct {
	OrderID   string
	StoreID   string
	ItemCount int
}

// Result is the transient outcome of a shipment arrangement call.
type Result struct {
	Success       bool
	TransactionID string
	TrackingInfo  string
	ErrorMessage  string
}

// Carrier is the external shipping collaborator.
type Carrier interface {
	ProcessShipment(ctx context.Context, method string, details Details, weight float64) (Result, error)
	CancelShipment(ctx context.Context, transactionID string) (bool, error)
}
