package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	apporder "github.com/mochizuki-dev/marketplace/internal/application/order"
	"github.com/mochizuki-dev/marketplace/internal/domain/cart"
	"github.com/mochizuki-dev/marketplace/internal/domain/event"
	domorder "github.com/mochizuki-dev/marketplace/internal/domain/order"
	"github.com/mochizuki-dev/marketplace/internal/domain/payment"
	"github.com/mochizuki-dev/marketplace/internal/domain/product"
	"github.com/mochizuki-dev/marketplace/internal/domain/supply"
	"github.com/mochizuki-dev/marketplace/internal/observability"
	"github.com/mochizuki-dev/marketplace/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const (
	componentCheckout = "checkout_orchestrator"
	useCaseCheckout   = "checkout.process"
	spanPrefix        = "UC."

	peerPayment = "payment_gateway"
	peerSupply  = "supply_carrier"

	// defaultItemWeight covers products the catalog has no weight for.
	defaultItemWeight = 0.5
)

// Saga stages, reported on Failure and on checkout.failed events.
const (
	StageValidate = "validate"
	StagePayment  = "payment"
	StageSupply   = "supply"
	StageFinalize = "finalize"
)

var (
	ErrEmptyCart     = errors.New("checkout: cart is empty")
	ErrPaymentFailed = errors.New("checkout: payment failed")
	ErrSupplyFailed  = errors.New("checkout: shipment arrangement failed")
)

// Failure is the tagged result of a checkout that did not complete. Err
// carries the stage sentinel (ErrPaymentFailed, ErrSupplyFailed, a
// validation error); Compensations records which rollback actions ran.
type Failure struct {
	Stage         string
	Err           error
	Compensations *CompensationLog
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Request carries the buyer's payment and shipment method selection.
type Request struct {
	PaymentMethod  string
	ShipmentMethod string
}

// Receipt summarizes a completed checkout.
type Receipt struct {
	OrderIDs           []string
	PaymentTransaction string
	// Tracking maps order id to the carrier's tracking info.
	Tracking    map[string]string
	TotalAmount float64
}

// Service is the checkout saga coordinator. It sequences reservation,
// payment, shipment, and finalization, and on any stage failure compensates
// everything already committed, in reverse order, best-effort.
type Service struct {
	orders    *apporder.Service
	carts     cart.Repository
	gateway   payment.Gateway
	carrier   supply.Carrier
	products  product.Repository
	publisher event.Publisher

	log observability.Logger
	tel observability.Observability

	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
	compCounter  observability.Counter

	shipConcurrency int
}

func NewService(
	orders *apporder.Service,
	carts cart.Repository,
	gateway payment.Gateway,
	carrier supply.Carrier,
	products product.Repository,
	publisher event.Publisher,
	tel observability.Observability,
) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Service{
		orders:          orders,
		carts:           carts,
		gateway:         gateway,
		carrier:         carrier,
		products:        products,
		publisher:       publisher,
		log:             tel.Logger().With(observability.F("component", componentCheckout)),
		tel:             tel,
		reqCounter:      metrics.Counter(observability.MUsecaseRequests),
		durHistogram:    metrics.Histogram(observability.MUsecaseDuration),
		extCounter:      metrics.Counter(observability.MExternalRequests),
		extHistogram:    metrics.Histogram(observability.MExternalRequestDuration),
		compCounter:     metrics.Counter(observability.MCompensationActions),
		shipConcurrency: 4,
	}
}

// ProcessUserCheckout checks out a registered buyer's persisted cart and
// clears it on success.
func (s *Service) ProcessUserCheckout(ctx context.Context, username string, req Request) (*Receipt, error) {
	if username == "" {
		return nil, errors.New("checkout: username is required")
	}

	c, err := s.carts.FindByBuyer(ctx, username)
	switch {
	case errors.Is(err, cart.ErrNotFound):
		return nil, ErrEmptyCart
	case err != nil:
		return nil, fmt.Errorf("checkout: load cart: %w", err)
	}

	clear := func(ctx context.Context) error {
		c.Clear()
		return s.carts.Save(ctx, username, c)
	}
	return s.run(ctx, domorder.NewBuyer(username), c, req, clear)
}

// ProcessGuestCheckout checks out a transient cart that is never persisted;
// there is no cart-clear step.
func (s *Service) ProcessGuestCheckout(ctx context.Context, c *cart.Cart, req Request) (*Receipt, error) {
	if c == nil {
		return nil, ErrEmptyCart
	}
	return s.run(ctx, domorder.GuestBuyer(), c.Clone(), req, nil)
}

// run executes the saga. Stages are strictly ordered and each gates the
// next; the first failure compensates completed work in reverse order.
func (s *Service) run(ctx context.Context, buyer domorder.Buyer, c *cart.Cart, req Request, clearCart func(context.Context) error) (_ *Receipt, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"Checkout",
		attribute.String("use_case", useCaseCheckout),
		attribute.String("checkout.buyer", buyer.String()),
		attribute.Bool("checkout.guest", buyer.Guest),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat,
			observability.L("use_case", useCaseCheckout),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("checkout_done", fields...)
	}()

	// Stage 1: precondition, no side effects yet.
	if c.IsEmpty() {
		outcome, statusText = "error", "EMPTY_CART"
		return nil, ErrEmptyCart
	}

	// Stage 2: validate stock and create pending orders, one per store.
	orders, err := s.orders.CreatePendingOrders(ctx, buyer, c)
	if err != nil {
		outcome, statusText = "error", "RESERVATION_FAILED"
		var verr *apporder.ValidationError
		if errors.As(err, &verr) {
			return nil, &Failure{Stage: StageValidate, Err: verr, Compensations: NewCompensationLog()}
		}
		return nil, err
	}
	span.SetAttributes(attribute.Int("checkout.orders", len(orders)))

	// Stage 3: one charge for the whole cart.
	var totalAmount float64
	for _, o := range orders {
		totalAmount += o.FinalPrice
	}
	payResult, payErr := s.processPayment(ctx, req.PaymentMethod, totalAmount)
	if payErr != nil || !payResult.Success {
		outcome, statusText = "error", "PAYMENT_FAILED"
		comp := NewCompensationLog()
		s.cancelOrders(ctx, comp, orders)
		s.publishFailed(ctx, StagePayment, reasonOf(payErr, payResult.ErrorMessage))
		return nil, &Failure{
			Stage:         StagePayment,
			Err:           fmt.Errorf("%w: %s", ErrPaymentFailed, reasonOf(payErr, payResult.ErrorMessage)),
			Compensations: comp,
		}
	}

	// Stage 4: arrange one shipment per order. Calls may run concurrently
	// but stage 5 only decides once every result is in.
	shipments := s.arrangeShipments(ctx, req.ShipmentMethod, orders)

	// Stage 5: any shipment failure rolls back everything in reverse order.
	if failed := firstFailedShipment(orders, shipments); failed != "" {
		outcome, statusText = "error", "SUPPLY_FAILED"
		comp := NewCompensationLog()
		s.cancelShipments(ctx, comp, orders, shipments)
		s.refundPayment(ctx, comp, payResult.TransactionID)
		s.cancelOrders(ctx, comp, orders)
		s.publishFailed(ctx, StageSupply, failed)
		return nil, &Failure{
			Stage:         StageSupply,
			Err:           fmt.Errorf("%w: %s", ErrSupplyFailed, failed),
			Compensations: comp,
		}
	}

	// Stage 6: attach references and transition every order to paid.
	shipmentRefs := make(map[string]string, len(orders))
	tracking := make(map[string]string, len(orders))
	for _, o := range orders {
		res := shipments[o.ID]
		shipmentRefs[o.ID] = res.TransactionID
		tracking[o.ID] = res.TrackingInfo
	}
	if err := s.orders.FinalizeOrders(ctx, orders, payResult.TransactionID, shipmentRefs); err != nil {
		outcome, statusText = "error", "FINALIZE_FAILED"
		comp := NewCompensationLog()
		s.cancelShipments(ctx, comp, orders, shipments)
		s.refundPayment(ctx, comp, payResult.TransactionID)
		s.cancelOrders(ctx, comp, orders)
		s.publishFailed(ctx, StageFinalize, err.Error())
		return nil, &Failure{Stage: StageFinalize, Err: err, Compensations: comp}
	}

	// Stage 7: clear the cart. The checkout already succeeded from the
	// buyer's perspective, so a clear failure is only logged.
	if clearCart != nil {
		if err := clearCart(ctx); err != nil {
			logger.Warn("cart_clear_failed",
				observability.F("error", err.Error()),
			)
		}
	}

	receipt := &Receipt{
		OrderIDs:           orderIDs(orders),
		PaymentTransaction: payResult.TransactionID,
		Tracking:           tracking,
		TotalAmount:        totalAmount,
	}

	s.publish(ctx, domorder.CheckoutCompletedEvent{
		OrderIDs:    receipt.OrderIDs,
		PaymentRef:  receipt.PaymentTransaction,
		TotalAmount: receipt.TotalAmount,
		OccurredAt:  time.Now().UTC(),
	})
	span.SetAttributes(attribute.Float64("checkout.total_amount", totalAmount))
	return receipt, nil
}

func (s *Service) processPayment(ctx context.Context, method string, amount float64) (payment.Result, error) {
	done := s.observeExternal(peerPayment, "process_payment")
	res, err := s.gateway.ProcessPayment(ctx, method, amount)
	done(err == nil && res.Success)
	return res, err
}

// arrangeShipments fans out one carrier call per order with a bounded
// concurrency cap. A transport error is folded into a failed result so the
// caller always sees one complete result per order.
func (s *Service) arrangeShipments(ctx context.Context, method string, orders []*domorder.Order) map[string]supply.Result {
	results := make([]supply.Result, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.shipConcurrency)
	for i, o := range orders {
		i, o := i, o
		g.Go(func() error {
			details := supply.Details{
				OrderID:   o.ID,
				StoreID:   o.StoreID,
				ItemCount: itemCount(o),
			}
			weight := s.estimateWeight(gctx, o)

			done := s.observeExternal(peerSupply, "process_shipment")
			res, err := s.carrier.ProcessShipment(gctx, method, details, weight)
			if err != nil {
				res = supply.Result{Success: false, ErrorMessage: err.Error()}
			}
			done(res.Success)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]supply.Result, len(orders))
	for i, o := range orders {
		out[o.ID] = results[i]
	}
	return out
}

// estimateWeight sums catalog unit weights over the order snapshot, falling
// back to a default for unknown products.
func (s *Service) estimateWeight(ctx context.Context, o *domorder.Order) float64 {
	var total float64
	for productID, qty := range o.Items() {
		unit := defaultItemWeight
		if p, err := s.products.FindByID(ctx, productID); err == nil && p.Weight > 0 {
			unit = p.Weight
		}
		total += unit * float64(qty)
	}
	return total
}

// cancelShipments undoes the successful subset of shipment arrangements.
func (s *Service) cancelShipments(ctx context.Context, comp *CompensationLog, orders []*domorder.Order, shipments map[string]supply.Result) {
	canceled := make(map[string]bool, len(shipments))
	for _, o := range orders {
		res := shipments[o.ID]
		if !res.Success || canceled[res.TransactionID] {
			continue
		}
		canceled[res.TransactionID] = true

		ok, err := s.carrier.CancelShipment(ctx, res.TransactionID)
		if err == nil && !ok {
			err = fmt.Errorf("carrier refused to cancel %s", res.TransactionID)
		}
		s.recordCompensation(ctx, comp, CompCancelShipment, res.TransactionID, err)
	}
}

func (s *Service) refundPayment(ctx context.Context, comp *CompensationLog, transactionID string) {
	if transactionID == "" {
		return
	}
	ok, err := s.gateway.CancelPayment(ctx, transactionID)
	if err == nil && !ok {
		err = fmt.Errorf("gateway refused to refund %s", transactionID)
	}
	s.recordCompensation(ctx, comp, CompRefundPayment, transactionID, err)
}

func (s *Service) cancelOrders(ctx context.Context, comp *CompensationLog, orders []*domorder.Order) {
	failures := s.orders.CancelOrders(ctx, orders)
	var err error
	if len(failures) > 0 {
		err = errors.Join(failures...)
	}
	s.recordCompensation(ctx, comp, CompCancelOrders, fmt.Sprintf("%d orders", len(orders)), err)
}

// recordCompensation logs every compensation attempt; a failed one is an
// operator problem, never a reason to stop the remaining rollback steps.
func (s *Service) recordCompensation(ctx context.Context, comp *CompensationLog, kind, target string, err error) {
	comp.Record(kind, target, err)

	outcome := "success"
	if err != nil {
		outcome = "error"
		logctx.FromOr(ctx, s.log).Error("compensation_failed",
			observability.F("kind", kind),
			observability.F("target", target),
			observability.F("error", err.Error()),
		)
	} else {
		logctx.FromOr(ctx, s.log).Info("compensation_done",
			observability.F("kind", kind),
			observability.F("target", target),
		)
	}
	s.compCounter.Add(1,
		observability.L("kind", kind),
		observability.L("outcome", outcome),
	)
}

// observeExternal returns a completion hook recording external-call metrics.
func (s *Service) observeExternal(peer, endpoint string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		outcome := "success"
		if !success {
			outcome = "error"
		}
		s.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		s.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
}

func (s *Service) publishFailed(ctx context.Context, stage, reason string) {
	s.publish(ctx, domorder.CheckoutFailedEvent{
		Stage:      stage,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	})
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

func firstFailedShipment(orders []*domorder.Order, shipments map[string]supply.Result) string {
	for _, o := range orders {
		if res := shipments[o.ID]; !res.Success {
			msg := res.ErrorMessage
			if msg == "" {
				msg = "shipment failed"
			}
			return fmt.Sprintf("order %s: %s", o.ID, msg)
		}
	}
	return ""
}

func orderIDs(orders []*domorder.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

func itemCount(o *domorder.Order) int {
	total := 0
	for _, qty := range o.Items() {
		total += qty
	}
	return total
}

func reasonOf(err error, msg string) string {
	if err != nil {
		return err.Error()
	}
	if msg == "" {
		return "payment declined"
	}
	return msg
}
