package worker

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// MessageSource is the consuming side of a Kafka topic
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// EventLog records consumed event ids
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Confirmer applies a gateway outcome to a payment
type Confirmer interface {
	HandleConfirmation(ctx context.Context, ref, outcome string) (*service.ConfirmationResult, error)
}

// ConfirmationWorker consumes gateway payment confirmations and materialises
// the deferred orders.
type ConfirmationWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	events       EventLog
	confirmer    Confirmer
	logger       *zap.Logger
}

// NewConfirmationWorker creates a new confirmation worker
func NewConfirmationWorker(consumer MessageSource, events EventLog, confirmer Confirmer) *ConfirmationWorker {
	w := &ConfirmationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		events:       events,
		confirmer:    confirmer,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnPaymentConfirmed(w.HandlePaymentConfirmed)
	return w
}

// Start blocks consuming messages until ctx is cancelled
func (w *ConfirmationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting confirmation worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ConfirmationWorker) Stop() error {
	w.logger.Info("Stopping confirmation worker")
	return w.consumer.Close()
}

// HandlePaymentConfirmed processes one confirmation at most once. Transient
// failures are returned so the message is redelivered; confirmations that can
// never succeed are recorded and dropped.
func (w *ConfirmationWorker) HandlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	ctx, span := util.StartSpan(ctx, "ConfirmationWorker.HandlePaymentConfirmed")
	defer span.End()

	processed, err := w.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check processed event: %w", err)
	}
	if processed {
		w.logger.Info("Confirmation already processed", zap.String("event_id", event.EventID))
		return nil
	}

	result, err := w.confirmer.HandleConfirmation(ctx, event.ExternalReference, event.Outcome)
	switch {
	case err == nil:
		fields := []zap.Field{
			zap.String("external_reference", event.ExternalReference),
			zap.String("outcome", event.Outcome),
			zap.Bool("duplicate", result.Duplicate),
		}
		if result.Order != nil {
			fields = append(fields, zap.Int64("order_id", result.Order.ID))
		}
		w.logger.Info("Confirmation applied", fields...)
	case errors.Is(err, service.ErrPaymentNotFound), errors.Is(err, service.ErrValidation):
		w.logger.Error("Dropping unprocessable confirmation",
			zap.String("event_id", event.EventID),
			zap.String("external_reference", event.ExternalReference),
			zap.Error(err))
	default:
		util.RecordError(span, err)
		return fmt.Errorf("failed to apply confirmation %s: %w", event.ExternalReference, err)
	}

	if err := w.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}
