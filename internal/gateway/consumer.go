// internal/gateway/consumer.go
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"wallet-ledger/internal/metrics"
	"wallet-ledger/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
)

// acknowledger is the part of amqp.Delivery the consumer needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer reads gateway notifications from a durable RabbitMQ queue.
// Deliveries are acked once applied or when they can never be applied,
// and requeued on transient failures.
type Consumer struct {
	conn     *amqp.Connection
	queue    string
	prefetch int
	handler  NotificationHandler
	metrics  metrics.Collector
	logger   *slog.Logger
}

// Dial opens an AMQP connection.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// NewConsumer creates a Consumer.
func NewConsumer(conn *amqp.Connection, queue string, prefetch int, handler NotificationHandler, collector metrics.Collector, logger *slog.Logger) *Consumer {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if prefetch <= 0 {
		prefetch = 10
	}
	return &Consumer{
		conn:     conn,
		queue:    queue,
		prefetch: prefetch,
		handler:  handler,
		metrics:  collector,
		logger:   logger.With("component", "gateway_consumer", "queue", queue),
	}
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	c.logger.Info("gateway notification consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("gateway notification consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("gateway consumer: delivery channel closed")
			}
			c.handleDelivery(ctx, d.Body, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, body []byte, ack acknowledger) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		c.logger.Warn("dropping malformed notification", "error", err)
		c.metrics.RecordGatewayNotification("unknown", metrics.OutcomeRejected)
		_ = ack.Nack(false, false)
		return
	}

	err := c.handler.HandleGatewayNotification(ctx, n)
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case IsPermanent(err):
		c.logger.Warn("dropping notification that cannot be applied", "order_id", n.OrderID, "status", n.Status, "error", err)
		_ = ack.Ack(false)
	default:
		c.logger.Error("notification failed, requeueing", "order_id", n.OrderID, "status", n.Status, "error", err)
		_ = ack.Nack(false, true)
	}
}

// IsPermanent reports whether retrying the notification can never succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, util.ErrNotFound) ||
		errors.Is(err, util.ErrInvalidInput) ||
		errors.Is(err, util.ErrStatusConflict) ||
		errors.Is(err, util.ErrAccountInactive) ||
		errors.Is(err, util.ErrInvalidAmount) ||
		errors.Is(err, util.ErrTransactionBlocked)
}
