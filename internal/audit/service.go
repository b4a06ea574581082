// Package audit records the append-only history of every payment notification.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"ferrylink/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Recorder writes audit events. Write failures are logged and never surface to the caller.
type Recorder interface {
	Received(ctx context.Context, paymentID *uuid.UUID, orderID, current, classification string, raw []byte)
	StatusChanged(ctx context.Context, paymentID uuid.UUID, orderID, from, to string, latency time.Duration, payload interface{})
	Error(ctx context.Context, paymentID *uuid.UUID, orderID string, err error, stack string, payload interface{})
	History(ctx context.Context, orderID string) ([]PaymentEvent, error)
	LatestPayload(ctx context.Context, orderID string) ([]byte, error)
}

// Failure carries the statuses involved in a rejected or failed transition
type Failure struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type service struct {
	repo Repository
	log  *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) Recorder {
	if log == nil {
		log = logger.GetDefault()
	}
	return &service{repo: repo, log: log}
}

// Received stores the raw notification with the payment's current status and the mapped target
func (s *service) Received(ctx context.Context, paymentID *uuid.UUID, orderID, current, classification string, raw []byte) {
	event := &PaymentEvent{
		PaymentID:      paymentID,
		OrderID:        orderID,
		Type:           EventReceived,
		PreviousStatus: current,
		NewStatus:      classification,
	}
	if json.Valid(raw) {
		event.Payload = datatypes.JSON(raw)
	}
	s.append(ctx, event)
}

func (s *service) StatusChanged(ctx context.Context, paymentID uuid.UUID, orderID, from, to string, latency time.Duration, payload interface{}) {
	s.append(ctx, &PaymentEvent{
		PaymentID:      &paymentID,
		OrderID:        orderID,
		Type:           EventStatusChanged,
		PreviousStatus: from,
		NewStatus:      to,
		LatencyMs:      latency.Milliseconds(),
		Payload:        toJSON(payload),
	})
}

func (s *service) Error(ctx context.Context, paymentID *uuid.UUID, orderID string, err error, stack string, payload interface{}) {
	event := &PaymentEvent{
		PaymentID: paymentID,
		OrderID:   orderID,
		Type:      EventError,
		Stack:     stack,
		Payload:   toJSON(payload),
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	if f, ok := payload.(Failure); ok {
		event.PreviousStatus = f.From
		event.NewStatus = f.To
	}
	s.append(ctx, event)
}

func (s *service) History(ctx context.Context, orderID string) ([]PaymentEvent, error) {
	return s.repo.ListByOrderID(ctx, orderID)
}

func (s *service) LatestPayload(ctx context.Context, orderID string) ([]byte, error) {
	event, err := s.repo.LatestReceived(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return []byte(event.Payload), nil
}

func (s *service) append(ctx context.Context, event *PaymentEvent) {
	// Audit rows outlive the request that produced them
	ctx = context.WithoutCancel(ctx)
	if err := s.repo.Append(ctx, event); err != nil {
		s.log.ErrorWithContext(ctx, "Failed to append payment event", err, map[string]interface{}{
			"order_id":   event.OrderID,
			"event_type": string(event.Type),
		})
	}
}

func toJSON(v interface{}) datatypes.JSON {
	switch p := v.(type) {
	case nil:
		return nil
	case []byte:
		if json.Valid(p) {
			return datatypes.JSON(p)
		}
		return nil
	case json.RawMessage:
		if json.Valid(p) {
			return datatypes.JSON(p)
		}
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
