package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the PostgreSQL-only guards that AutoMigrate cannot express
func MigrateConstraints(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	// Seat inventory bounds
	err := db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_schedules_seat_bounds') THEN
				ALTER TABLE schedules
				ADD CONSTRAINT chk_schedules_seat_bounds
				CHECK (available_seats >= 0 AND available_seats <= total_seats);
			END IF;
		END $$;
	`).Error
	if err != nil {
		return err
	}

	// payment_events is append-only
	err = db.Exec(`
		CREATE OR REPLACE FUNCTION forbid_payment_event_mutation() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'payment_events is append-only';
		END;
		$$ LANGUAGE plpgsql;
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`DROP TRIGGER IF EXISTS trg_payment_events_append_only ON payment_events`).Error
	if err != nil {
		return err
	}

	return db.Exec(`
		CREATE TRIGGER trg_payment_events_append_only
		BEFORE UPDATE OR DELETE ON payment_events
		FOR EACH ROW EXECUTE FUNCTION forbid_payment_event_mutation();
	`).Error
}
