package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	// ErrStatusChanged means a guarded update matched no row because the status moved underneath us
	ErrStatusChanged = errors.New("booking status changed concurrently")
	// ErrSeatBounds means restoring seats would push available_seats past total_seats
	ErrSeatBounds = errors.New("seat restore exceeds schedule capacity")
)

// Transition describes a guarded status change applied inside a reconciliation transaction
type Transition struct {
	From               Status
	To                 Status
	At                 time.Time
	CancellationReason string
}

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *Booking) error
	CreateSchedule(ctx context.Context, tx *gorm.DB, schedule *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error)

	// Row-locked operations, always run on the caller's transaction
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, t Transition) error
	RestoreSeats(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seats int) error
	ListPassengers(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]Passenger, error)
	AssignSeat(ctx context.Context, tx *gorm.DB, passengerID uuid.UUID, seat string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, tx *gorm.DB, booking *Booking) error {
	return tx.WithContext(ctx).Create(booking).Error
}

func (r *repository) CreateSchedule(ctx context.Context, tx *gorm.DB, schedule *Schedule) error {
	return tx.WithContext(ctx).Create(schedule).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Passengers", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Schedule").
		Where("code = ?", code).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	var schedule Schedule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// TransitionStatus moves the booking from t.From to t.To only if it is still in t.From
func (r *repository) TransitionStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, t Transition) error {
	updates := map[string]interface{}{
		"status":     t.To,
		"updated_at": t.At,
	}

	switch t.To {
	case StatusConfirmed:
		updates["confirmed_at"] = t.At
	case StatusCancelled, StatusExpired:
		updates["cancelled_at"] = t.At
		updates["cancellation_reason"] = t.CancellationReason
	case StatusRefunded:
		updates["cancelled_at"] = t.At
		if t.CancellationReason != "" {
			updates["cancellation_reason"] = t.CancellationReason
		}
	}

	result := tx.WithContext(ctx).
		Model(&Booking{}).
		Where("id = ? AND status = ?", id, t.From).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

// RestoreSeats returns seats to the schedule without ever exceeding total_seats
func (r *repository) RestoreSeats(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seats int) error {
	if seats <= 0 {
		return nil
	}

	result := tx.WithContext(ctx).
		Model(&Schedule{}).
		Where("id = ? AND available_seats + ? <= total_seats", scheduleID, seats).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats + ?", seats),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSeatBounds
	}
	return nil
}

func (r *repository) ListPassengers(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]Passenger, error) {
	var passengers []Passenger
	err := tx.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("position ASC").
		Find(&passengers).Error
	return passengers, err
}

func (r *repository) AssignSeat(ctx context.Context, tx *gorm.DB, passengerID uuid.UUID, seat string) error {
	return tx.WithContext(ctx).
		Model(&Passenger{}).
		Where("id = ?", passengerID).
		Update("seat_number", seat).Error
}
