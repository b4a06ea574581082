package webhookqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferrylink/pkg/logger"

	"github.com/IBM/sarama"
	"golang.org/x/sync/errgroup"
)

// KafkaConfig contains configuration for the Kafka queue mode
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	RetryMax int
	Timeout  time.Duration
	Retry    RetryPolicy
}

// DefaultKafkaConfig returns a default configuration
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:  []string{"localhost:9092"},
		Topic:    "payment-notifications",
		GroupID:  "ferrylink-webhook-workers",
		RetryMax: 3,
		Timeout:  10 * time.Second,
		Retry:    DefaultRetryPolicy(),
	}
}

// KafkaPublisher writes notifications keyed by order id, so one order always lands on one partition
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
}

// NewKafkaPublisher creates a synchronous, idempotent producer
func NewKafkaPublisher(config *KafkaConfig, log *logger.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Hash partitioning keeps per-order ordering
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return newKafkaPublisher(producer, config.Topic, log), nil
}

func newKafkaPublisher(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.GetDefault()
	}
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload []byte) error {
	now := time.Now().UTC()
	message := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("order_id"), Value: []byte(key)},
			{Key: []byte("enqueued_at"), Value: []byte(now.Format(time.RFC3339Nano))},
			{Key: []byte("producer"), Value: []byte("ferrylink-webhook")},
		},
		Timestamp: now,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	p.log.DebugContext(ctx, "Notification queued",
		"order_id", key, "topic", p.topic, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}

// KafkaConsumer runs consumer-group workers over the notification topic
type KafkaConsumer struct {
	group  sarama.ConsumerGroup
	topics []string
	retry  RetryPolicy
	log    *logger.Logger
}

func NewKafkaConsumer(config *KafkaConfig, log *logger.Logger) (*KafkaConsumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second
	saramaConfig.Consumer.Group.Session.Timeout = 30 * time.Second
	saramaConfig.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	saramaConfig.Consumer.MaxProcessingTime = time.Minute

	group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &KafkaConsumer{
		group:  group,
		topics: []string{config.Topic},
		retry:  config.Retry,
		log:    log,
	}, nil
}

func (c *KafkaConsumer) Run(ctx context.Context, workers int, h Handler) error {
	if workers <= 0 {
		workers = 1
	}
	c.log.Info("Starting Kafka webhook workers", "workers", workers, "topics", c.topics)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-c.group.Errors():
				if !ok {
					return nil
				}
				c.log.Error("Consumer group error", "error", err.Error())
			}
		}
	})

	for i := 0; i < workers; i++ {
		handler := &groupHandler{workerID: i, handle: h, retry: c.retry, log: c.log}
		g.Go(func() error {
			for {
				if err := c.group.Consume(ctx, c.topics, handler); err != nil {
					if errors.Is(err, sarama.ErrClosedConsumerGroup) {
						return nil
					}
					c.log.Error("Worker error consuming messages", "worker", handler.workerID, "error", err.Error())
					select {
					case <-ctx.Done():
					case <-time.After(time.Second):
					}
				}
				if ctx.Err() != nil {
					return nil
				}
			}
		})
	}

	return g.Wait()
}

func (c *KafkaConsumer) Close() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	workerID int
	handle   Handler
	retry    RetryPolicy
	log      *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.log.Debug("Consumer group session started", "worker", h.workerID)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.log.Debug("Consumer group session ended", "worker", h.workerID)
	return nil
}

// ConsumeClaim marks every message once it is handled or its retries are exhausted.
// Exhausted payloads stay in the audit trail for admin replay.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			err := deliver(session.Context(), h.handle, string(message.Key), message.Value, h.retry, h.log)
			if errors.Is(err, context.Canceled) {
				// Rebalance or shutdown; leave the offset for the next owner
				return nil
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
