package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"storefront/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one store event. A returned error requeues the delivery once.
type EventHandler func(ctx context.Context, event domain.StoreEvent) error

type deliverySource interface {
	ConsumeActivity() (<-chan amqp.Delivery, error)
}

// EventConsumer feeds store events from the activity queue to a handler.
type EventConsumer struct {
	source  deliverySource
	handler EventHandler
}

func NewEventConsumer(rmq *RabbitMQ, handler EventHandler) *EventConsumer {
	return &EventConsumer{
		source:  rmq,
		handler: handler,
	}
}

// Start begins consuming in a background goroutine until ctx is cancelled.
func (c *EventConsumer) Start(ctx context.Context) error {
	msgs, err := c.source.ConsumeActivity()
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping event consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("event consumer channel closed")
					return
				}
				c.process(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *EventConsumer) process(ctx context.Context, msg amqp.Delivery) {
	var event domain.StoreEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("error unmarshaling store event",
			slog.String("error", err.Error()),
			slog.String("body", string(msg.Body)))
		msg.Nack(false, false)
		return
	}

	if err := c.handler(ctx, event); err != nil {
		slog.Warn("store event handler failed",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
			slog.Bool("redelivered", msg.Redelivered))
		msg.Nack(false, !msg.Redelivered)
		return
	}
	msg.Ack(false)
}

// LogActivity is an EventHandler that writes each event to the structured log.
func LogActivity(logger *slog.Logger) EventHandler {
	return func(_ context.Context, event domain.StoreEvent) error {
		attrs := []any{
			slog.String("type", event.Type),
			slog.String("subject", event.SubjectID),
			slog.Int("item_count", event.ItemCount),
			slog.Time("occurred_at", event.OccurredAt),
		}
		if event.ProductID != "" {
			attrs = append(attrs, slog.String("product_id", event.ProductID))
		}
		logger.Info("store activity", attrs...)
		return nil
	}
}
