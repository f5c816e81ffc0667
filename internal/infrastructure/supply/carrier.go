package supply

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domain "github.com/mochizuki-dev/marketplace/internal/domain/supply"
	"github.com/google/uuid"
)

// SimulatedCarrier stands in for a real shipping provider. Arranged
// shipments get a uuid transaction id and a tracking number; a knob controls
// the simulated failure rate.
type SimulatedCarrier struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	arranged    map[string]bool
}

func NewSimulatedCarrier(successRate float64) *SimulatedCarrier {
	return &SimulatedCarrier{
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
		arranged:    make(map[string]bool),
	}
}

func (c *SimulatedCarrier) ProcessShipment(ctx context.Context, method string, details domain.Details, weight float64) (domain.Result, error) {
	_ = ctx
	if method == "" {
		return domain.Result{}, errors.New("supply: method is required")
	}
	if weight <= 0 {
		return domain.Result{}, errors.New("supply: weight must be greater than zero")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.random.Float64() > c.successRate {
		return domain.Result{Success: false, ErrorMessage: "carrier unavailable"}, nil
	}

	txID := uuid.NewString()
	c.arranged[txID] = true
	return domain.Result{
		Success:       true,
		TransactionID: txID,
		TrackingInfo:  fmt.Sprintf("TRK-%s-%s", details.StoreID, txID[:8]),
	}, nil
}

// CancelShipment cancels a known arrangement once.
func (c *SimulatedCarrier) CancelShipment(ctx context.Context, transactionID string) (bool, error) {
	_ = ctx

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.arranged[transactionID] {
		return false, nil
	}
	delete(c.arranged, transactionID)
	return true, nil
}
