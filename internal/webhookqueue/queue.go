// Package webhookqueue decouples webhook acknowledgement from processing.
// Ingress publishes the authenticated raw payload keyed by order id; a worker pool
// consumes it and runs the same processor the synchronous path uses.
package webhookqueue

import (
	"context"
	"time"

	"ferrylink/pkg/logger"
)

// Handler processes one queued payload. A non-nil error asks for another attempt.
type Handler func(ctx context.Context, payload []byte) error

// Publisher enqueues authenticated notifications
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close() error
}

// Consumer runs workers until ctx is cancelled or the broker connection is lost
type Consumer interface {
	Run(ctx context.Context, workers int, h Handler) error
	Close() error
}

// RetryPolicy bounds redelivery of a payload inside one worker
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: 500 * time.Millisecond}
}

// deliver runs h with exponential backoff. The last error is returned once retries are exhausted.
func deliver(ctx context.Context, h Handler, key string, payload []byte, policy RetryPolicy, log *logger.Logger) error {
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err = h(ctx, payload); err == nil {
			if attempt > 0 {
				log.Info("Queued notification processed after retry", "order_id", key, "attempt", attempt+1)
			}
			return nil
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := policy.Backoff * time.Duration(1<<attempt)
		log.Warn("Retrying queued notification", "order_id", key, "attempt", attempt+1, "delay", delay.String(), "error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	log.Error("Giving up on queued notification, replay from the audit trail",
		"order_id", key, "attempts", policy.MaxRetries+1, "error", err.Error())
	return err
}
