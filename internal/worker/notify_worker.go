package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/azrion/storefront/internal/model"
	"github.com/azrion/storefront/internal/repository"
	"github.com/azrion/storefront/internal/service"
)

const (
	dlxExchange    = "order_events.dlx"
	dlqQueueName   = "order_events.dlq"
	idempotencyTTL = 24 * time.Hour
)

// Notifier delivers an order notification to the customer. The worker only
// cares that delivery either succeeds or returns an error it can retry.
type Notifier interface {
	Notify(ctx context.Context, event model.OrderEvent, order *model.Order) error
}

// LogNotifier writes notifications to the structured log. It stands in for a
// real delivery channel; swapping in email or push only touches this type.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event model.OrderEvent, order *model.Order) error {
	n.log.Info("order notification",
		"kind", event.Kind,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"total", order.TotalAmount,
	)
	return nil
}

// NotifyWorker consumes order events and dispatches customer notifications.
// Redis keyed on the message id keeps redeliveries from notifying twice;
// poison messages dead-letter after one attempt.
type NotifyWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	redisClient *redis.Client
	notifier    Notifier
	log         *slog.Logger
	done        chan struct{}
}

func NewNotifyWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	redisClient *redis.Client,
	notifier Notifier,
	log *slog.Logger,
) *NotifyWorker {
	return &NotifyWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		redisClient: redisClient,
		notifier:    notifier,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares the order-events queue with its DLX/DLQ pair.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, service.OrderEventsQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(service.OrderEventsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": service.OrderEventsQueue,
	}); err != nil {
		return fmt.Errorf("declare order events queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotifyWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(service.OrderEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("notify worker started")
	return nil
}

func (w *NotifyWorker) Stop() { close(w.done) }

func (w *NotifyWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", event.OrderID, "kind", event.Kind)

	idempotencyKey := "notified:" + msg.MessageId
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("event already handled, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.notify(ctx, event); err != nil {
		log.Error("notify failed", "error", err)
		_ = msg.Nack(false, false) // to DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("order event handled")
}

func (w *NotifyWorker) notify(ctx context.Context, event model.OrderEvent) error {
	order, err := w.orderRepo.GetByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", event.OrderID)
	}
	return w.notifier.Notify(ctx, event, order)
}
