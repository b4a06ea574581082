package database

import (
	"ferrylink/internal/audit"
	"ferrylink/internal/bookings"
	"ferrylink/internal/payments"
	"ferrylink/internal/tickets"

	"gorm.io/gorm"
)

// Models lists every table owned by the reconciliation engine
func Models() []interface{} {
	return []interface{}{
		&bookings.Schedule{},
		&bookings.Booking{},
		&bookings.Passenger{},
		&payments.Payment{},
		&tickets.Ticket{},
		&audit.PaymentEvent{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
