package payment

import "context"

// Result is the transient outcome of a single gateway call. It is consumed
// once by the checkout orchestrator and never persisted.
type Result struct {
	Success       bool
	TransactionID string
	ErrorMessage  string
}

// Gateway is the external payment collaborator. Implementations live in
// infrastructure; the core only sequences calls and compensations.
type Gateway interface {
	ProcessPayment(ctx context.Context, method string, amount float64) (Result, error)
	CancelPayment(ctx context.Context, transactionID string) (bool, error)
}
