package checkout

import "sync"

// Compensation action kinds recorded during rollback.
const (
	CompCancelShipment = "cancel_shipment"
	CompRefundPayment  = "refund_payment"
	CompCancelOrders   = "cancel_orders"
)

// CompensationAction records one attempted compensating step. Err is nil
// when the step succeeded.
type CompensationAction struct {
	Kind   string
	Target string
	Err    error
}

// CompensationLog is the structured record of a rollback. Every compensating
// action is attempted and recorded regardless of earlier failures, so tests
// and operators can see exactly which ran and which broke.
type CompensationLog struct {
	mu      sync.Mutex
	actions []CompensationAction
}

func NewCompensationLog() *CompensationLog {
	return &CompensationLog{}
}

func (l *CompensationLog) Record(kind, target string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = append(l.actions, CompensationAction{Kind: kind, Target: target, Err: err})
}

func (l *CompensationLog) Actions() []CompensationAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]CompensationAction, len(l.actions))
	copy(out, l.actions)
	return out
}

// ByKind returns the recorded actions of one kind, in order.
func (l *CompensationLog) ByKind(kind string) []CompensationAction {
	var out []CompensationAction
	for _, a := range l.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Failed returns the actions whose compensating call itself failed.
func (l *CompensationLog) Failed() []CompensationAction {
	var out []CompensationAction
	for _, a := range l.Actions() {
		if a.Err != nil {
			out = append(out, a)
		}
	}
	return out
}
