package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homease/service-booking/internal/pkg/kafka"
	"github.com/homease/service-booking/internal/pkg/metrics"
)

const (
	// TopicBookingEvents carries booking lifecycle events.
	TopicBookingEvents = "booking.events"
	// TopicPaymentEvents carries payment gateway events consumed by this service.
	TopicPaymentEvents = "payment.events"

	source = "service-booking"
)

// Booking lifecycle event types.
const (
	BookingRequested = "booking.requested"
	BookingConfirmed = "booking.confirmed"
	BookingRejected  = "booking.rejected"
	BookingCancelled = "booking.cancelled"
	BookingStarted   = "booking.started"
	BookingCompleted = "booking.completed"
	BookingExpired   = "booking.expired"
)

// BookingStateChangedEvent is the payload for every lifecycle event.
type BookingStateChangedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	ServiceID  uuid.UUID `json:"service_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingCompletedEvent additionally carries the settled amounts.
type BookingCompletedEvent struct {
	BookingStateChangedEvent
	TotalAmount      int64  `json:"total_amount"`
	PlatformFee      int64  `json:"platform_fee"`
	ProviderEarnings int64  `json:"provider_earnings"`
	Currency         string `json:"currency"`
}

// Emitter publishes booking lifecycle events. Emission is best-effort and
// happens only after the state change has committed; a publish failure is
// logged and counted, never propagated to the caller.
type Emitter struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewEmitter creates an Emitter over the given producer.
func NewEmitter(producer *kafka.Producer, logger *zap.Logger) *Emitter {
	return &Emitter{producer: producer, logger: logger}
}

// Emit publishes a CloudEvent of the given type to the booking topic.
func (e *Emitter) Emit(ctx context.Context, eventType string, key string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(source, eventType, data)
	if err != nil {
		e.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		metrics.EventPublishFailures.WithLabelValues(TopicBookingEvents).Inc()
		return
	}

	if err := e.producer.Publish(ctx, TopicBookingEvents, key, cloudEvent); err != nil {
		e.logger.Error("failed to publish event",
			zap.String("topic", TopicBookingEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		metrics.EventPublishFailures.WithLabelValues(TopicBookingEvents).Inc()
	}
}
