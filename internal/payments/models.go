package payments

import (
	"time"

	"ferrylink/internal/bookings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is the gateway-side record of a booking's single payment.
// OrderID is immutable once created; only the reconciler writes Status afterwards.
type Payment struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID         string         `gorm:"type:varchar(64);uniqueIndex;not null;<-:create" json:"order_id"`
	BookingID       uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"booking_id"`
	Amount          float64        `gorm:"not null" json:"amount"`
	Status          Status         `gorm:"type:varchar(20);index;not null;default:'PENDING'" json:"status"`
	PaymentType     string         `gorm:"type:varchar(40)" json:"payment_type,omitempty"`
	TransactionID   string         `gorm:"type:varchar(64);index" json:"transaction_id,omitempty"`
	VANumber        string         `gorm:"type:varchar(64)" json:"va_number,omitempty"`
	Bank            string         `gorm:"type:varchar(32)" json:"bank,omitempty"`
	RawNotification datatypes.JSON `json:"raw_notification,omitempty"`
	PaidAt          *time.Time     `json:"paid_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	Booking *bookings.Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	return nil
}
