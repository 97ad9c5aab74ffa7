// Package worker turns records-service change events into dashboard
// refreshes.
package worker

import (
	"context"

	"despesas/internal/amqp"
	"despesas/internal/log"
)

// ChangeWorker receives change messages and signals the refresh pipeline.
// Bursts of messages collapse into one pending signal.
type ChangeWorker struct {
	events chan struct{}
	logger *log.Logger
}

func NewChangeWorker(logger *log.Logger) *ChangeWorker {
	return &ChangeWorker{
		events: make(chan struct{}, 1),
		logger: logger.WithComponent(log.ComponentAMQP),
	}
}

// Events is the signal channel to hand to the refresh pipeline.
func (w *ChangeWorker) Events() <-chan struct{} {
	return w.events
}

// HandleChangeMessage processes a single change message from AMQP.
func (w *ChangeWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.logger.DebugContext(ctx, "Processing change message",
		log.FieldEvent, msg.Kind,
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldCount, msg.Count)
	w.Notify()
	return nil
}

// Notify queues a refresh unless one is already pending.
func (w *ChangeWorker) Notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
