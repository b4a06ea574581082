package audit

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrNoReceivedEvent = errors.New("no received event recorded for order")

// Repository only appends and reads; payment_events has no update or delete path
type Repository interface {
	Append(ctx context.Context, event *PaymentEvent) error
	ListByOrderID(ctx context.Context, orderID string) ([]PaymentEvent, error)
	LatestReceived(ctx context.Context, orderID string) (*PaymentEvent, error)
	CountByType(ctx context.Context, orderID string, eventType EventType) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Append(ctx context.Context, event *PaymentEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByOrderID(ctx context.Context, orderID string) ([]PaymentEvent, error) {
	var events []PaymentEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (r *repository) LatestReceived(ctx context.Context, orderID string) (*PaymentEvent, error) {
	var event PaymentEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, EventReceived).
		Order("created_at DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoReceivedEvent
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) CountByType(ctx context.Context, orderID string, eventType EventType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&PaymentEvent{}).
		Where("order_id = ? AND type = ?", orderID, eventType).
		Count(&count).Error
	return count, err
}
