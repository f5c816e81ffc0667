package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mochizuki-dev/marketplace/internal/domain/event"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(ctx context.Context, e event.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(nil)
	first := &recorder{}
	second := &recorder{}
	bus.Subscribe("order.created", first.handle)
	bus.Subscribe("order.created", second.handle)

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.created"}))
	bus.Stop(ctx)

	require.Equal(t, 1, first.count())
	require.Equal(t, 1, second.count())
}

func TestBus_RoutesByEventName(t *testing.T) {
	bus := NewBus(nil)
	created := &recorder{}
	canceled := &recorder{}
	bus.Subscribe("order.created", created.handle)
	bus.Subscribe("order.canceled", canceled.handle)

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.created"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.created"}))
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.canceled"}))
	bus.Stop(ctx)

	require.Equal(t, 2, created.count())
	require.Equal(t, 1, canceled.count())
}

func TestBus_StopDrainsQueue(t *testing.T) {
	bus := NewBus(nil)
	rec := &recorder{}
	bus.Subscribe("order.created", rec.handle)

	ctx := context.Background()
	bus.Start(ctx)
	for i := 0; i < 50; i++ {
		require.NoError(t, bus.Publish(ctx, testEvent{name: "order.created"}))
	}
	bus.Stop(ctx)

	require.Equal(t, 50, rec.count())
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus(nil)
	rec := &recorder{}
	bus.Subscribe("order.created", func(ctx context.Context, e event.Event) error {
		panic("handler blew up")
	})
	bus.Subscribe("order.created", rec.handle)

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.created"}))
	bus.Stop(ctx)

	require.Equal(t, 1, rec.count())
}

func TestBus_HandlerErrorIsSwallowed(t *testing.T) {
	bus := NewBus(nil)
	rec := &recorder{}
	bus.Subscribe("order.created", func(ctx context.Context, e event.Event) error {
		return errors.New("downstream unavailable")
	})
	bus.Subscribe("order.created", rec.handle)

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent{name: "order.created"}))
	bus.Stop(ctx)

	require.Equal(t, 1, rec.count())
}

func TestBus_PublishNilIsNoop(t *testing.T) {
	bus := NewBus(nil)
	require.NoError(t, bus.Publish(context.Background(), nil))
}

func TestBus_StartAndStopAreIdempotent(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()

	bus.Start(ctx)
	bus.Start(ctx)

	done := make(chan struct{})
	go func() {
		bus.Stop(ctx)
		bus.Stop(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}
