package worker

import (
	"context"
	"testing"

	"despesas/internal/amqp"
	"despesas/internal/log"
)

func TestHandleChangeMessageCoalesces(t *testing.T) {
	w := NewChangeWorker(log.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.HandleChangeMessage(ctx, amqp.NewChangeMessage(amqp.ChangeCreated, "1", 0)); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	select {
	case <-w.Events():
	default:
		t.Fatal("expected a pending event")
	}
	select {
	case <-w.Events():
		t.Fatal("expected events to be coalesced")
	default:
	}
}
