package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ferrylink/internal/bookings"
	"ferrylink/internal/payments"
	"ferrylink/internal/shared/config"
	"ferrylink/internal/shared/database"
	"ferrylink/internal/shared/middleware"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Seeder struct {
	db       *gorm.DB
	bookings bookings.Repository
	payments payments.Repository
}

type seededOrder struct {
	OrderID     string
	BookingCode string
	Amount      float64
}

func main() {
	fmt.Println("🌱 Starting FerryLink Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	pg := db.GetPostgreSQL()
	seeder := &Seeder{
		db:       pg,
		bookings: bookings.NewRepository(pg),
		payments: payments.NewRepository(pg),
	}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	orders, err := seeder.SeedAll(context.Background())
	if err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	printSamples(cfg, orders)
	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"payment_events",
		"tickets",
		"payments",
		"passengers",
		"bookings",
		"schedules",
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// payment_events is append-only; its guard trigger must be bypassed to reset
		if err := tx.Exec("SET session_replication_role = replica").Error; err != nil {
			return fmt.Errorf("failed to disable triggers: %w", err)
		}
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return tx.Exec("SET session_replication_role = DEFAULT").Error
	})
}

// SeedAll creates two sailings and a handful of bookings awaiting payment
func (s *Seeder) SeedAll(ctx context.Context) ([]seededOrder, error) {
	departure := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)

	routes := []struct {
		code  string
		seats int
		fare  float64
	}{
		{"MRK-BKH", 120, 75000},
		{"KTP-GLM", 60, 150000},
	}

	passengerNames := [][]string{
		{"Budi Santoso", "Siti Rahayu"},
		{"Agus Wijaya"},
		{"Dewi Lestari", "Rudi Hartono", "Putri Ayu"},
	}

	var orders []seededOrder
	for i, route := range routes {
		schedule := &bookings.Schedule{
			RouteCode:      route.code,
			DepartureTime:  departure.Add(time.Duration(i) * 6 * time.Hour),
			TotalSeats:     route.seats,
			AvailableSeats: route.seats,
		}
		if err := s.bookings.CreateSchedule(ctx, s.db, schedule); err != nil {
			return nil, fmt.Errorf("failed to seed schedule %s: %w", route.code, err)
		}
		fmt.Printf("  🚢 Schedule %s departing %s\n", route.code, schedule.DepartureTime.Format(time.RFC3339))

		for j, names := range passengerNames {
			order, err := s.seedBooking(ctx, schedule, route.fare, names, fmt.Sprintf("%d%02d", i+1, j+1))
			if err != nil {
				return nil, err
			}
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

// seedBooking holds seats and creates the pending booking with its payment in one transaction
func (s *Seeder) seedBooking(ctx context.Context, schedule *bookings.Schedule, fare float64, names []string, suffix string) (*seededOrder, error) {
	booking := &bookings.Booking{
		Code:            "FB-" + suffix,
		UserID:          uuid.New(),
		ScheduleID:      schedule.ID,
		Status:          bookings.StatusPending,
		TotalPassengers: len(names),
		TotalAmount:     fare * float64(len(names)),
		ExpiresAt:       time.Now().UTC().Add(time.Hour),
	}
	for i, name := range names {
		booking.Passengers = append(booking.Passengers, bookings.Passenger{FullName: name, Position: i + 1})
	}
	payment := &payments.Payment{
		OrderID: "ORD-" + suffix,
		Amount:  booking.TotalAmount,
		Status:  payments.StatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		held := tx.WithContext(ctx).
			Model(&bookings.Schedule{}).
			Where("id = ? AND available_seats >= ?", schedule.ID, len(names)).
			Update("available_seats", gorm.Expr("available_seats - ?", len(names)))
		if held.Error != nil {
			return held.Error
		}
		if held.RowsAffected == 0 {
			return fmt.Errorf("not enough seats on %s", schedule.RouteCode)
		}

		if err := s.bookings.Create(ctx, tx, booking); err != nil {
			return err
		}
		payment.BookingID = booking.ID
		return s.payments.Create(ctx, tx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed booking %s: %w", booking.Code, err)
	}

	fmt.Printf("    🎫 Booking %s (%d passengers) awaiting payment %s\n", booking.Code, len(names), payment.OrderID)
	return &seededOrder{OrderID: payment.OrderID, BookingCode: booking.Code, Amount: payment.Amount}, nil
}

// printSamples prints signed notifications for the seeded orders and an admin token
func printSamples(cfg *config.Config, orders []seededOrder) {
	if len(orders) == 0 {
		return
	}
	endpoint := fmt.Sprintf("http://localhost:%s%s/payments/notification", cfg.Port, cfg.GetAPIBasePath())

	fmt.Println("\n📨 Sample notifications:")
	for _, o := range orders {
		n := payments.Notification{
			OrderID:           o.OrderID,
			StatusCode:        "200",
			GrossAmount:       fmt.Sprintf("%.2f", o.Amount),
			TransactionStatus: "settlement",
			PaymentType:       "bank_transfer",
			TransactionID:     uuid.NewString(),
			SettlementTime:    time.Now().In(time.FixedZone("WIB", 7*3600)).Format(payments.SettlementTimeLayout),
			VANumbers:         []payments.VANumber{{Bank: "bca", VANumber: "8808" + o.OrderID[4:]}},
		}
		n.SignatureKey = payments.ComputeSignature(n.OrderID, n.StatusCode, n.GrossAmount, cfg.Webhook.ServerKey)

		body, err := json.Marshal(n)
		if err != nil {
			continue
		}
		fmt.Printf("  curl -s -X POST %s -H 'Content-Type: application/json' -d '%s'\n", endpoint, body)
	}

	token, err := middleware.SignAccessToken(cfg.JWT.Secret, uuid.NewString(), "ops@ferrylink.local", middleware.RoleAdmin, 24*time.Hour)
	if err != nil {
		log.Printf("Failed to mint admin token: %v", err)
		return
	}
	fmt.Printf("\n🔑 Admin token (24h):\n  %s\n", token)
}
