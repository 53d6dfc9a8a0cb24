package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"energy-store/internal/models"
	"energy-store/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing reservation lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func reservationKey(token string) string {
	return fmt.Sprintf("reservation-%s", token)
}

// PublishReservationCreated publishes ReservationCreated event
func (ep *EventPublisher) PublishReservationCreated(ctx context.Context, event *models.ReservationCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, reservationKey(event.Token), event)
}

// PublishReservationCompleted publishes ReservationCompleted event
func (ep *EventPublisher) PublishReservationCompleted(ctx context.Context, event *models.ReservationCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, reservationKey(event.Token), event)
}

// PublishReservationCancelled publishes ReservationCancelled or ReservationExpired events
func (ep *EventPublisher) PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, reservationKey(event.Token), event)
}

// PublishHandoffRequested publishes the order message for the messaging channel
func (ep *EventPublisher) PublishHandoffRequested(ctx context.Context, event *models.HandoffRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, reservationKey(event.Token), event)
}

// EventHandler routes reservation commands
type EventHandler struct {
	onConfirmed func(context.Context, *models.ReservationCommandEvent) error
	onRejected  func(context.Context, *models.ReservationCommandEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnReservationConfirmed registers a handler for ReservationConfirmed commands
func (eh *EventHandler) OnReservationConfirmed(handler func(context.Context, *models.ReservationCommandEvent) error) {
	eh.onConfirmed = handler
}

// OnReservationRejected registers a handler for ReservationRejected commands
func (eh *EventHandler) OnReservationRejected(handler func(context.Context, *models.ReservationCommandEvent) error) {
	eh.onRejected = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ReservationCommandEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal reservation command: %w", err)
	}

	logger := util.GetLogger()
	logger.Info("Handling event",
		zap.String("type", event.EventType),
		zap.String("id", event.EventID))

	var handler func(context.Context, *models.ReservationCommandEvent) error
	switch event.EventType {
	case models.EventTypeReservationConfirmed:
		handler = eh.onConfirmed
	case models.EventTypeReservationRejected:
		handler = eh.onRejected
	default:
		logger.Debug("Unhandled event type", zap.String("type", event.EventType))
		return nil
	}

	if handler == nil {
		return nil
	}
	if event.Token == "" {
		return fmt.Errorf("event %s has no reservation token", event.EventID)
	}
	return handler(ctx, &event)
}
