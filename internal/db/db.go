package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clinic-presence-backend/config"
	"clinic-presence-backend/internal/model"
)

// Init initializes the database connection and runs migrations. The DSN
// picks the driver: a "sqlite:" prefix (or a bare file path ending in .db)
// opens SQLite for local development, anything else goes to Postgres.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector := dialectorFor(cfg.DSN)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if dialector.Name() == "postgres" {
		if err := applyPostgresDDL(db); err != nil {
			log.Printf("Warning: failed to apply some history-table DDL: %v. Continuing without it.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate runs schema migrations for every persisted entity.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Appointment{},
		&model.AppointmentZoneState{},
		&model.PractitionerPresence{},
		&model.PresenceHistoryEntry{},
		&model.RoomAddressMapping{},
		&model.PushSubscription{},
		&model.SubscriptionPractitioner{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "sqlite:") {
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite:"))
	}
	if strings.HasSuffix(dsn, ".db") {
		return sqlite.Open(dsn)
	}
	return postgres.Open(dsn)
}

// applyPostgresDDL adds indexes the history log needs once it grows past
// what a clinic produces in a few months. The history table is append-only
// and never pruned here; retention is an operator decision.
func applyPostgresDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE INDEX IF NOT EXISTS idx_presence_history_practitioner_occurred ON presence_history_entries (practitioner_id, occurred_at DESC);",
		"CREATE INDEX IF NOT EXISTS idx_zone_states_visit_status ON appointment_zone_states (visit_date, status);",
	}
	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
