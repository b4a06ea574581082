package payments

import (
	"context"
	"errors"
)

// QueueHandler adapts the processor for queue workers. Contended and failed deliveries are
// returned as errors so the worker retries them; the gateway will not redeliver a queued payload.
func QueueHandler(p Processor) func(ctx context.Context, payload []byte) error {
	return func(ctx context.Context, payload []byte) error {
		result := p.ProcessRaw(ctx, payload)
		switch result.Outcome {
		case OutcomeContended, OutcomeFailed:
			if errors.Is(result.Err, ErrMalformedPayload) {
				return nil
			}
			if result.Err == nil {
				return errors.New(string(result.Outcome))
			}
			return result.Err
		}
		return nil
	}
}
