package handoff

import (
	"context"
	"time"

	"energy-store/internal/models"
	"energy-store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is one order handed to the messaging channel
type Request struct {
	Token   string
	Phone   string
	Message string
	Link    string
}

// Emitter delivers a handoff request. Delivery is not confirmed back to checkout.
type Emitter interface {
	Emit(ctx context.Context, req Request) error
}

// Publisher is the part of broker.EventPublisher the Kafka emitter needs
type Publisher interface {
	PublishHandoffRequested(ctx context.Context, event *models.HandoffRequestedEvent) error
}

// KafkaEmitter publishes HANDOFF_REQUESTED events for the messaging gateway
type KafkaEmitter struct {
	publisher Publisher
}

func NewKafkaEmitter(publisher Publisher) *KafkaEmitter {
	return &KafkaEmitter{publisher: publisher}
}

func (e *KafkaEmitter) Emit(ctx context.Context, req Request) error {
	return e.publisher.PublishHandoffRequested(ctx, &models.HandoffRequestedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeHandoffRequested,
			Timestamp: time.Now(),
		},
		Token:   req.Token,
		Phone:   req.Phone,
		Message: req.Message,
		Link:    req.Link,
	})
}

// LogEmitter only logs the link; used when no broker is configured
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, req Request) error {
	util.GetLogger().Info("Handoff link ready",
		zap.String("token", req.Token),
		zap.String("link", req.Link))
	return nil
}
