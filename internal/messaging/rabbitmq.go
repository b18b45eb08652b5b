package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "storefront.events"
	ActivityQueue  = "storefront.activity"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.Mutex
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials until the broker accepts a connection or ctx ends.
// Brokers started next to the server usually need a few seconds.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	const retryInterval = 2 * time.Second

	for attempt := 1; ; attempt++ {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not ready, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq unavailable after %d attempts: %w", attempt, errors.Join(err, ctx.Err()))
		case <-time.After(retryInterval):
		}
	}
}

// Setup declares the events exchange and the durable activity queue bound to
// every cart and wishlist event.
func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		EventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		ActivityQueue, // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s queue: %w", ActivityQueue, err)
	}

	for _, key := range []string{"cart.*", "wishlist.*"} {
		if err := r.channel.QueueBind(ActivityQueue, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", ActivityQueue, key, err)
		}
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// PublishStoreEvent publishes event with its type as routing key.
func (r *RabbitMQ) PublishStoreEvent(ctx context.Context, event domain.StoreEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	err = r.channel.PublishWithContext(
		ctx,
		EventsExchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		},
	)
	r.mu.Unlock()

	if err != nil {
		observability.EventsPublished.WithLabelValues(event.Type, "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	observability.EventsPublished.WithLabelValues(event.Type, "ok").Inc()
	observability.FromContext(ctx).Debug("published store event",
		slog.String("type", event.Type),
		slog.Int("item_count", event.ItemCount))
	return nil
}

// ConsumeActivity starts delivery from the activity queue with manual acks.
func (r *RabbitMQ) ConsumeActivity() (<-chan amqp.Delivery, error) {
	msgs, err := r.channel.Consume(
		ActivityQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming store events",
		slog.String("queue", ActivityQueue))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// NoopPublisher drops events. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStoreEvent(context.Context, domain.StoreEvent) error {
	return nil
}
