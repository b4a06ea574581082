package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Update carries the fields a reconciliation writes onto a payment
type Update struct {
	Status          Status
	PaymentType     string
	TransactionID   string
	VANumber        string
	Bank            string
	RawNotification []byte
	PaidAt          *time.Time
}

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	FindByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID string) (*Payment, error)
	ApplyUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID, from Status, u Update) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, tx *gorm.DB, payment *Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *repository) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	var payment Payment
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID string) (*Payment, error) {
	var payment Payment
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// ApplyUpdate writes u only while the payment is still in from
func (r *repository) ApplyUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID, from Status, u Update) error {
	updates := map[string]interface{}{
		"status": u.Status,
	}
	if u.PaymentType != "" {
		updates["payment_type"] = u.PaymentType
	}
	if u.TransactionID != "" {
		updates["transaction_id"] = u.TransactionID
	}
	if u.VANumber != "" {
		updates["va_number"] = u.VANumber
		updates["bank"] = u.Bank
	}
	if len(u.RawNotification) > 0 {
		updates["raw_notification"] = datatypes.JSON(u.RawNotification)
	}
	if u.PaidAt != nil {
		updates["paid_at"] = *u.PaidAt
	}

	result := tx.WithContext(ctx).
		Model(&Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentChanged
	}
	return nil
}
