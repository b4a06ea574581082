package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EventType string

const (
	EventReceived      EventType = "received"
	EventStatusChanged EventType = "status_changed"
	EventError         EventType = "error"
)

// PaymentEvent is one immutable row of a payment's history. Rows are never updated or deleted.
type PaymentEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID      *uuid.UUID     `gorm:"type:uuid;index" json:"payment_id,omitempty"`
	OrderID        string         `gorm:"type:varchar(64);index;not null" json:"order_id"`
	Type           EventType      `gorm:"type:varchar(20);index;not null" json:"type"`
	PreviousStatus string         `gorm:"type:varchar(20)" json:"previous_status,omitempty"`
	NewStatus      string         `gorm:"type:varchar(20)" json:"new_status,omitempty"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	Stack          string         `gorm:"type:text" json:"stack,omitempty"`
	Payload        datatypes.JSON `json:"payload,omitempty"`
	LatencyMs      int64          `json:"latency_ms,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}

func (e *PaymentEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
