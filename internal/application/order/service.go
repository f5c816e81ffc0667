package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mochizuki-dev/marketplace/internal/application/inventory"
	"github.com/mochizuki-dev/marketplace/internal/domain/cart"
	"github.com/mochizuki-dev/marketplace/internal/domain/event"
	domain "github.com/mochizuki-dev/marketplace/internal/domain/order"
	"github.com/mochizuki-dev/marketplace/internal/domain/product"
	"github.com/mochizuki-dev/marketplace/internal/observability"
	"github.com/mochizuki-dev/marketplace/internal/observability/logctx"
)

const componentOrderService = "order_service"

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
	ErrFinalize   = errors.New("order: finalize failed")
)

// ValidationError carries the complete set of stock problems found across a
// cart, one formatted line per violation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "order: validation failed: " + strings.Join(e.Problems, "; ")
}

// Service drives the order lifecycle: creating pending orders from a cart,
// finalizing them after payment, and canceling them with stock restoration.
type Service struct {
	orders    domain.Repository
	products  product.Repository
	guard     *inventory.Guard
	ids       IDGenerator
	publisher event.Publisher
	log       observability.Logger
}

func NewService(
	orders domain.Repository,
	products product.Repository,
	guard *inventory.Guard,
	ids IDGenerator,
	publisher event.Publisher,
	logger observability.Logger,
) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		orders:    orders,
		products:  products,
		guard:     guard,
		ids:       ids,
		publisher: publisher,
		log:       logger.With(observability.F("component", componentOrderService)),
	}
}

// CreatePendingOrders turns a cart into one pending order per store.
// Validation is all-or-nothing at the cart level: every store's basket is
// checked and priced first, and if any fails the joint problems are reported
// and no stock is touched. Reservation then runs store by store; a reserve
// lost to a concurrent checkout rolls back the stores already reserved.
func (s *Service) CreatePendingOrders(ctx context.Context, buyer domain.Buyer, c *cart.Cart) ([]*domain.Order, error) {
	logger := logctx.FromOr(ctx, s.log)
	baskets := c.Baskets()

	storeIDs := make([]string, 0, len(baskets))
	for storeID := range baskets {
		storeIDs = append(storeIDs, storeID)
	}
	sort.Strings(storeIDs)

	var problems []string
	totals := make(map[string]float64, len(storeIDs))
	for _, storeID := range storeIDs {
		items := baskets[storeID]
		storeProblems, err := s.guard.Validate(ctx, storeID, items)
		if err != nil {
			return nil, err
		}
		problems = append(problems, storeProblems...)

		total, priceProblems, err := s.priceBasket(ctx, items)
		if err != nil {
			return nil, err
		}
		problems = append(problems, priceProblems...)
		totals[storeID] = total
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	reserved := make([]string, 0, len(storeIDs))
	rollbackReserved := func() {
		for _, storeID := range reserved {
			if err := s.guard.Restore(ctx, storeID, baskets[storeID]); err != nil {
				logger.Error("stock_restore_failed",
					observability.F("store_id", storeID),
					observability.F("error", err.Error()),
				)
			}
		}
	}

	for _, storeID := range storeIDs {
		storeProblems, err := s.guard.Reserve(ctx, storeID, baskets[storeID])
		if err != nil {
			rollbackReserved()
			return nil, err
		}
		if len(storeProblems) > 0 {
			// Lost a race with a concurrent checkout on this store.
			rollbackReserved()
			return nil, &ValidationError{Problems: storeProblems}
		}
		reserved = append(reserved, storeID)
	}

	orders := make([]*domain.Order, 0, len(storeIDs))
	for _, storeID := range storeIDs {
		// Version-1 pricing has no discount layer: final equals total.
		entity, err := domain.New(s.ids.NewID(), storeID, buyer, baskets[storeID], totals[storeID], totals[storeID])
		if err != nil {
			rollbackReserved()
			s.cancelCreated(ctx, orders)
			return nil, fmt.Errorf("order: construct: %w", err)
		}
		if err := s.orders.Insert(ctx, entity); err != nil {
			rollbackReserved()
			s.cancelCreated(ctx, orders)
			return nil, fmt.Errorf("%w: insert %s: %w", ErrRepository, entity.ID, err)
		}
		orders = append(orders, entity)
		s.publish(ctx, domain.NewOrderCreatedEvent(entity))
	}

	logger.Info("pending_orders_created",
		observability.F("buyer", buyer.String()),
		observability.F("orders", len(orders)),
	)
	return orders, nil
}

// FinalizeOrders attaches payment and shipment references to every order in
// the batch and transitions each to paid.
func (s *Service) FinalizeOrders(ctx context.Context, orders []*domain.Order, paymentRef string, shipmentRefs map[string]string) error {
	logger := logctx.FromOr(ctx, s.log)

	for _, o := range orders {
		o.SetPaymentReference(paymentRef)
		if !o.MarkPaid() {
			return fmt.Errorf("%w: order %s in status %s", ErrFinalize, o.ID, o.Status)
		}
		if ref, ok := shipmentRefs[o.ID]; ok {
			o.SetDeliveryTracking(ref)
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return fmt.Errorf("%w: update %s: %w", ErrRepository, o.ID, err)
		}
	}

	logger.Info("orders_finalized",
		observability.F("orders", len(orders)),
		observability.F("payment_ref", paymentRef),
	)
	return nil
}

// CancelOrders transitions each order to canceled and restores its reserved
// stock. Compensation is best-effort per order: a failure on one store is
// reported and logged but never blocks the rest of the batch.
func (s *Service) CancelOrders(ctx context.Context, orders []*domain.Order) []error {
	logger := logctx.FromOr(ctx, s.log)

	var failures []error
	for _, o := range orders {
		if !o.Cancel() {
			// Already terminal; nothing left to undo for this order.
			continue
		}
		if err := s.guard.Restore(ctx, o.StoreID, o.Items()); err != nil {
			failures = append(failures, fmt.Errorf("order %s: restore stock: %w", o.ID, err))
			logger.Error("cancel_restore_failed",
				observability.F("order_id", o.ID),
				observability.F("store_id", o.StoreID),
				observability.F("error", err.Error()),
			)
		}
		if err := s.orders.Update(ctx, o); err != nil {
			failures = append(failures, fmt.Errorf("order %s: update: %w", o.ID, err))
			logger.Error("cancel_update_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err.Error()),
			)
			continue
		}
		s.publish(ctx, domain.NewOrderCanceledEvent(o))
	}

	logger.Info("orders_canceled",
		observability.F("orders", len(orders)),
		observability.F("failures", len(failures)),
	)
	return failures
}

// MarkShipped advances a paid order to shipped.
func (s *Service) MarkShipped(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, domain.StatusShipped)
}

// MarkCompleted advances a shipped order to completed.
func (s *Service) MarkCompleted(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, domain.StatusCompleted)
}

func (s *Service) advance(ctx context.Context, orderID string, next domain.Status) error {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !o.TransitionTo(next) {
		return fmt.Errorf("order: cannot move %s from %s to %s", orderID, o.Status, next)
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return fmt.Errorf("%w: update %s: %w", ErrRepository, orderID, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, errors.New("order: id is required")
	}
	return s.orders.FindByID(ctx, id)
}

func (s *Service) ListByBuyer(ctx context.Context, buyerName string) ([]*domain.Order, error) {
	return s.orders.FindByBuyer(ctx, buyerName)
}

func (s *Service) ListByStore(ctx context.Context, storeID string) ([]*domain.Order, error) {
	return s.orders.FindByStore(ctx, storeID)
}

// priceBasket computes the basket total from catalog prices. A product the
// catalog does not know is a validation problem, not a system error.
func (s *Service) priceBasket(ctx context.Context, items map[string]int) (float64, []string, error) {
	var total float64
	var problems []string
	for _, productID := range sortedKeys(items) {
		p, err := s.products.FindByID(ctx, productID)
		switch {
		case errors.Is(err, product.ErrNotFound):
			problems = append(problems, fmt.Sprintf("product %s: not in catalog", productID))
			continue
		case err != nil:
			return 0, nil, fmt.Errorf("%w: product %s: %w", ErrRepository, productID, err)
		}
		total += p.Price * float64(items[productID])
	}
	return total, problems, nil
}

// cancelCreated unwinds orders already inserted when a later insert fails.
func (s *Service) cancelCreated(ctx context.Context, orders []*domain.Order) {
	for _, o := range orders {
		if !o.Cancel() {
			continue
		}
		if err := s.orders.Update(ctx, o); err != nil {
			logctx.FromOr(ctx, s.log).Error("cancel_created_failed",
				observability.F("order_id", o.ID),
				observability.F("error", err.Error()),
			)
		}
	}
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func sortedKeys(items map[string]int) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
