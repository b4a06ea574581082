package tickets

import (
	"context"
	"time"

	"ferrylink/internal/bookings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	CountByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int64, error)
	CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, tickets []Ticket) error
	CancelByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int64, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error)
	FindConfirmedWithoutTickets(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&Ticket{}).
		Where("booking_id = ?", bookingID).
		Count(&count).Error
	return count, err
}

func (r *repository) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&Ticket{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateBatch(ctx context.Context, tx *gorm.DB, tickets []Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	return tx.WithContext(ctx).CreateInBatches(tickets, 100).Error
}

// CancelByBooking invalidates every ticket of the booking that is not already cancelled
func (r *repository) CancelByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&Ticket{}).
		Where("booking_id = ? AND status <> ?", bookingID, StatusCancelled).
		Updates(map[string]interface{}{
			"status":     StatusCancelled,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// ListByBooking returns tickets in passenger order
func (r *repository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Joins("JOIN passengers ON passengers.id = tickets.passenger_id").
		Where("tickets.booking_id = ?", bookingID).
		Order("passengers.position ASC").
		Find(&tickets).Error
	return tickets, err
}

// FindConfirmedWithoutTickets returns confirmed bookings whose issuance never completed
func (r *repository) FindConfirmedWithoutTickets(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&bookings.Booking{}).
		Where("bookings.status = ?", bookings.StatusConfirmed).
		Where("NOT EXISTS (SELECT 1 FROM tickets WHERE tickets.booking_id = bookings.id)").
		Order("bookings.confirmed_at ASC").
		Limit(limit).
		Pluck("bookings.id", &ids).Error
	return ids, err
}
