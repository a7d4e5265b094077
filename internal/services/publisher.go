package services

import (
	"context"
	"log/slog"

	"familyledger/internal/amqp"
)

// ChangePublisher announces record writes to the sync worker.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.RecordChangeMessage) error
}

// notify publishes a change message. Failures are logged only: the record
// is already stored and the worker's startup sweep picks it up.
func notify(ctx context.Context, p ChangePublisher, msg *amqp.RecordChangeMessage) {
	if p == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping change message",
			"collection", msg.Collection, "id", msg.ID)
		return
	}
	if err := p.PublishChange(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change message",
			"collection", msg.Collection,
			"id", msg.ID,
			"operation", msg.Operation,
			"error", err)
	}
}
