package payments

import (
	"time"

	"ferrylink/internal/audit"
)

// Outcome is how one notification was handled. Every outcome is acknowledged with 200.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeReplay    Outcome = "replay"
	OutcomeContended Outcome = "contended"
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeFailed    Outcome = "failed"
)

type ProcessResult struct {
	OrderID       string        `json:"order_id"`
	Outcome       Outcome       `json:"outcome"`
	From          Status        `json:"from,omitempty"`
	To            Status        `json:"to,omitempty"`
	TicketsIssued int           `json:"tickets_issued,omitempty"`
	Latency       time.Duration `json:"-"`
	Err           error         `json:"-"`
}

type WebhookAck struct {
	Status  string  `json:"status"`
	OrderID string  `json:"order_id,omitempty"`
	Outcome Outcome `json:"outcome,omitempty"`
	Queued  bool    `json:"queued,omitempty"`
}

type PaymentEventResponse struct {
	ID             string          `json:"id"`
	Type           audit.EventType `json:"type"`
	PreviousStatus string          `json:"previous_status,omitempty"`
	NewStatus      string          `json:"new_status,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	LatencyMs      int64           `json:"latency_ms,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func ToEventResponses(events []audit.PaymentEvent) []PaymentEventResponse {
	out := make([]PaymentEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, PaymentEventResponse{
			ID:             e.ID.String(),
			Type:           e.Type,
			PreviousStatus: e.PreviousStatus,
			NewStatus:      e.NewStatus,
			ErrorMessage:   e.ErrorMessage,
			LatencyMs:      e.LatencyMs,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}
