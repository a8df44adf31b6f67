package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher is the write side the EventPublisher needs from Kafka
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer           Publisher
	orderTopic         string
	confirmationsTopic string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer Publisher, orderTopic, confirmationsTopic string) *EventPublisher {
	return &EventPublisher{
		producer:           producer,
		orderTopic:         orderTopic,
		confirmationsTopic: confirmationsTopic,
	}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, orderKey(event.OrderID), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, orderKey(event.OrderID), event)
}

// PublishOrderDeleted publishes OrderDeleted event
func (ep *EventPublisher) PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, orderKey(event.OrderID), event)
}

// PublishCartChanged publishes CartChanged event
func (ep *EventPublisher) PublishCartChanged(ctx context.Context, event *models.CartChangedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.orderTopic, "cart-"+event.OwnerKey, event)
}

// PublishPaymentConfirmed publishes a gateway confirmation for the worker
func (ep *EventPublisher) PublishPaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	return ep.producer.PublishEvent(ctx, ep.confirmationsTopic, "payment-"+event.ExternalReference, event)
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPaymentConfirmed func(context.Context, *models.PaymentConfirmedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPaymentConfirmed registers a handler for PaymentConfirmed events
func (eh *EventHandler) OnPaymentConfirmed(handler func(context.Context, *models.PaymentConfirmedEvent) error) {
	eh.onPaymentConfirmed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePaymentConfirmed:
		if eh.onPaymentConfirmed != nil {
			var event models.PaymentConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentConfirmed event: %w", err)
			}
			return eh.onPaymentConfirmed(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
