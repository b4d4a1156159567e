package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmitInvokesSubscribedHandler(t *testing.T) {
	eb := NewEventBus()

	var calls atomic.Int32
	done := make(chan struct{})
	eb.Subscribe(EventClientSeen, "test.handler", func(ctx context.Context, event Event) error {
		calls.Add(1)
		close(done)
		return nil
	})

	eb.Emit(context.Background(), Event{Type: EventClientSeen, Source: "test"})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmitUnsubscribedTypeIsNoOp(t *testing.T) {
	eb := NewEventBus()
	eb.Emit(context.Background(), Event{Type: EventShutdown, Source: "test"})
	assert.Equal(t, 0, eb.HandlerCount(EventShutdown))
}

func TestStopDropsLaterEmits(t *testing.T) {
	eb := NewEventBus()

	var calls atomic.Int32
	eb.Subscribe(EventClientSeen, "test.handler", func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	})

	eb.Stop()
	eb.Emit(context.Background(), Event{Type: EventClientSeen, Source: "test"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	eb := NewEventBus()

	eb.Subscribe(EventListRefreshed, "test.panics", func(ctx context.Context, event Event) error {
		panic("boom")
	})

	eb.Emit(context.Background(), Event{Type: EventListRefreshed, Source: "test"})
	eb.Stop() // waits for the handler; must not propagate the panic
}
