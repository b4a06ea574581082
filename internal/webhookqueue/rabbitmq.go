package webhookqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferrylink/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const (
	ExchangeKind = "direct"
	RoutingKey   = "payment.notification"
)

// ErrDeliveriesClosed means the broker closed the delivery channel
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// RabbitMQConfig contains configuration for the RabbitMQ queue mode
type RabbitMQConfig struct {
	URL      string
	Exchange string
	Queue    string
	Retry    RetryPolicy
}

// channel is the subset of *amqp.Channel the queue uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// RabbitMQQueue publishes to a durable exchange and consumes from a durable queue bound to it
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
	queue    string
	retry    RetryPolicy
	log      *logger.Logger
}

func NewRabbitMQQueue(config *RabbitMQConfig, log *logger.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(config.Exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	q, err := ch.QueueDeclare(config.Queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	if err := ch.QueueBind(q.Name, RoutingKey, config.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq queue bind: %w", err)
	}

	queue := newRabbitMQQueue(ch, config, log)
	queue.conn = conn
	return queue, nil
}

func newRabbitMQQueue(ch channel, config *RabbitMQConfig, log *logger.Logger) *RabbitMQQueue {
	if log == nil {
		log = logger.GetDefault()
	}
	return &RabbitMQQueue{
		channel:  ch,
		exchange: config.Exchange,
		queue:    config.Queue,
		retry:    config.Retry,
		log:      log,
	}
}

func (q *RabbitMQQueue) Publish(ctx context.Context, key string, payload []byte) error {
	err := q.channel.PublishWithContext(ctx,
		q.exchange,
		RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Timestamp:    time.Now().UTC(),
			Headers:      amqp.Table{"order_id": key},
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	q.log.DebugContext(ctx, "Notification queued", "order_id", key, "exchange", q.exchange)
	return nil
}

// Run consumes with manual acks. Each delivery is acked once handled or once its retries are exhausted.
func (q *RabbitMQQueue) Run(ctx context.Context, workers int, h Handler) error {
	if workers <= 0 {
		workers = 1
	}
	if err := q.channel.Qos(workers, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}

	msgs, err := q.channel.Consume(
		q.queue,
		"",    // consumer tag
		false, // auto-ack = false, we ack manually after processing
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}
	q.log.Info("Starting RabbitMQ webhook workers", "workers", workers, "queue", q.queue)

	// In-flight deliveries finish when the broker closes the channel
	g, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-workerCtx.Done():
					return nil
				case d, ok := <-msgs:
					if !ok {
						return nil
					}
					q.handle(workerCtx, d, h)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() == nil {
		return ErrDeliveriesClosed
	}
	return nil
}

func (q *RabbitMQQueue) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	key := d.MessageId
	if key == "" {
		if v, ok := d.Headers["order_id"].(string); ok {
			key = v
		}
	}

	err := deliver(ctx, h, key, d.Body, q.retry, q.log)
	if errors.Is(err, context.Canceled) {
		if nackErr := d.Nack(false, true); nackErr != nil {
			q.log.Error("Failed to requeue delivery", "order_id", key, "error", nackErr.Error())
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		q.log.Error("Failed to ack delivery", "order_id", key, "error", ackErr.Error())
	}
}

func (q *RabbitMQQueue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
