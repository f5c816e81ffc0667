package payment

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	domain "github.com/mochizuki-dev/marketplace/internal/domain/payment"
	"github.com/google/uuid"
)

// SimulatedGateway stands in for a real payment provider. It issues uuid
// transaction ids and remembers them so refunds can be verified; a knob
// controls the simulated decline rate.
type SimulatedGateway struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	charged     map[string]float64
	refunded    map[string]bool
}

func NewSimulatedGateway(successRate float64) *SimulatedGateway {
	return &SimulatedGateway{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		charged:     make(map[string]float64),
		refunded:    make(map[string]bool),
	}
}

func (g *SimulatedGateway) ProcessPayment(ctx context.Context, method string, amount float64) (domain.Result, error) {
	_ = ctx
	if method == "" {
		return domain.Result{}, errors.New("payment: method is required")
	}
	if amount <= 0 {
		return domain.Result{}, errors.New("payment: amount must be greater than zero")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.random.Float64() > g.successRate {
		return domain.Result{Success: false, ErrorMessage: "payment declined"}, nil
	}

	txID := uuid.NewString()
	g.charged[txID] = amount
	return domain.Result{Success: true, TransactionID: txID}, nil
}

// CancelPayment refunds a known transaction once. An unknown or already
// refunded transaction returns false.
func (g *SimulatedGateway) CancelPayment(ctx context.Context, transactionID string) (bool, error) {
	_ = ctx

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.charged[transactionID]; !ok {
		return false, nil
	}
	if g.refunded[transactionID] {
		return false, nil
	}
	g.refunded[transactionID] = true
	return true, nil
}
