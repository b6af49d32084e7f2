package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	bookingDomain "github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/pkg/kafka"
)

// Payment event types published by the payment gateway bridge.
const (
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
)

// PaymentResultEvent is the payload of payment gateway events.
type PaymentResultEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentApplier applies a payment result to a booking.
type PaymentApplier interface {
	ApplyPaymentResult(ctx context.Context, bookingID uuid.UUID, status bookingDomain.PaymentStatus) error
}

// PaymentEventConsumer listens to payment events and updates the booking's
// payment status.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	applier  PaymentApplier
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	applier PaymentApplier,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		applier:  applier,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	var status bookingDomain.PaymentStatus
	switch cloudEvent.Type {
	case PaymentSucceeded:
		status = bookingDomain.PaymentSuccess
	case PaymentFailed:
		status = bookingDomain.PaymentFailed
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}

	var evt PaymentResultEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse payment result data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	if err := c.applier.ApplyPaymentResult(ctx, evt.BookingID, status); err != nil {
		c.logger.Error("failed to apply payment result",
			zap.String("booking_id", evt.BookingID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return err
	}

	c.logger.Info("payment result applied",
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("status", string(status)),
	)
	return nil
}
