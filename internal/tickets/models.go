package tickets

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusValid     Status = "VALID"
	StatusUsed      Status = "USED"
	StatusCancelled Status = "CANCELLED"
)

// Ticket is one passenger's boarding credential. A booking holds at most one ticket per passenger.
type Ticket struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tickets_booking_passenger" json:"booking_id"`
	PassengerID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_tickets_booking_passenger" json:"passenger_id"`
	Code        string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	QRPayload   string     `gorm:"type:text;not null" json:"qr_payload"`
	SeatNumber  string     `gorm:"type:varchar(8)" json:"seat_number"`
	Status      Status     `gorm:"type:varchar(20);index;not null;default:'VALID'" json:"status"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Ticket) TableName() string {
	return "tickets"
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusValid
	}
	return nil
}

// QRPayload is the scannable content encoded into a ticket
type QRPayload struct {
	TicketCode    string    `json:"ticket_code"`
	BookingCode   string    `json:"booking_code"`
	PassengerName string    `json:"passenger_name"`
	ScheduleID    string    `json:"schedule_id"`
	DepartureTime time.Time `json:"departure_time"`
	Seat          string    `json:"seat"`
}
