package bookings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Schedule is a sailing with a seat inventory counter.
// 0 <= AvailableSeats <= TotalSeats always holds.
type Schedule struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RouteCode      string    `gorm:"type:varchar(32);index" json:"route_code"`
	DepartureTime  time.Time `gorm:"not null" json:"departure_time"`
	TotalSeats     int       `gorm:"not null" json:"total_seats"`
	AvailableSeats int       `gorm:"not null" json:"available_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Booking defines the main booking structure
type Booking struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code               string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	UserID             uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	ScheduleID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"schedule_id"`
	Status             Status     `gorm:"type:varchar(20);index;not null;default:'PENDING'" json:"status"`
	TotalPassengers    int        `gorm:"not null;<-:create" json:"total_passengers"`
	TotalAmount        float64    `gorm:"not null" json:"total_amount"`
	ExpiresAt          time.Time  `json:"expires_at"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"type:varchar(255)" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// Relationships
	Passengers []Passenger `gorm:"foreignKey:BookingID" json:"passengers,omitempty"`
	Schedule   *Schedule   `gorm:"foreignKey:ScheduleID" json:"schedule,omitempty"`
}

// Passenger belongs to a booking; Position is its 1-based ordinal within the booking
type Passenger struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID  uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	FullName   string    `gorm:"type:varchar(120);not null" json:"full_name"`
	Position   int       `gorm:"not null" json:"position"`
	SeatNumber string    `gorm:"type:varchar(8)" json:"seat_number,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Schedule) TableName() string {
	return "schedules"
}

func (Booking) TableName() string {
	return "bookings"
}

func (Passenger) TableName() string {
	return "passengers"
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	return nil
}

func (p *Passenger) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsPending reports whether the booking still awaits a payment outcome
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// IsConfirmed reports whether the booking has been paid
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}
