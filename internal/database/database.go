package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"logisync-backend/internal/logger"
)

// Connect opens and pings a Postgres connection pool
func Connect(dbURL string) (*sqlx.DB, error) {
	l := logger.Get()
	l.Info("Connecting to database", zap.String("url_prefix", dbURL[:min(15, len(dbURL))]))

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l.Info("Database connection established")
	return db, nil
}

// Migrate bootstraps the schema. Every statement is idempotent.
func Migrate(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('driver', 'admin')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_organization ON users(organization_id)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('pending', 'processing', 'fulfilled', 'cancelled')),
			customer_name TEXT NOT NULL,
			customer_contact TEXT NOT NULL DEFAULT '',
			delivery_address TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS transports (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			plate_number TEXT NOT NULL,
			vehicle_type TEXT NOT NULL,
			capacity_kg DOUBLE PRECISION NOT NULL CHECK(capacity_kg >= 0),
			volume_capacity_m3 DOUBLE PRECISION NOT NULL CHECK(volume_capacity_m3 >= 0),
			driver_id TEXT REFERENCES users(id) ON DELETE SET NULL
		)`,

		`CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			transport_id TEXT REFERENCES transports(id) ON DELETE SET NULL,
			driver_id TEXT REFERENCES users(id) ON DELETE SET NULL,
			order_id TEXT UNIQUE REFERENCES orders(id),
			budget_id TEXT,
			warehouse_id TEXT,
			origin_address TEXT NOT NULL DEFAULT '',
			departure_date BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_driver ON shipments(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_organization ON shipments(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_transport ON shipments(transport_id)`,

		`CREATE TABLE IF NOT EXISTS shipment_details (
			tracking_number TEXT PRIMARY KEY,
			shipment_id TEXT NOT NULL REFERENCES shipments(id),
			order_id TEXT REFERENCES orders(id),
			receiver_name TEXT NOT NULL,
			receiver_contact TEXT NOT NULL DEFAULT '',
			receiver_address TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK(weight_kg >= 0),
			length_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			width_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			height_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			charges BIGINT NOT NULL DEFAULT 0 CHECK(charges >= 0),
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'picked_up', 'in_transit', 'out_for_delivery', 'delivered', 'delivery_attempted', 'exception', 'cancelled')),
			deleted_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_details_shipment ON shipment_details(shipment_id)`,

		`CREATE TABLE IF NOT EXISTS tracking_history (
			id SERIAL PRIMARY KEY,
			tracking_number TEXT REFERENCES shipment_details(tracking_number),
			shipment_id TEXT REFERENCES shipments(id),
			timestamp BIGINT NOT NULL,
			location TEXT NOT NULL,
			status TEXT NOT NULL,
			details TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_history_package ON tracking_history(tracking_number, timestamp, id)`,

		`CREATE TABLE IF NOT EXISTS gps_locations (
			id BIGSERIAL PRIMARY KEY,
			shipment_id TEXT NOT NULL REFERENCES shipments(id),
			driver_id TEXT NOT NULL,
			latitude NUMERIC(10,7) NOT NULL,
			longitude NUMERIC(10,7) NOT NULL,
			speed DOUBLE PRECISION,
			accuracy DOUBLE PRECISION,
			recorded_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gps_locations_shipment ON gps_locations(shipment_id, recorded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_gps_locations_driver ON gps_locations(driver_id, recorded_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	logger.Get().Info("Database migrations completed", zap.Int("statements", len(migrations)))
	return nil
}
