package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

var _ services.Store = (*PostgresStore)(nil)

// PostgresStore implements services.Store on sqlx
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection pool
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}

func (s *PostgresStore) GetPackage(ctx context.Context, trackingNumber string) (*models.Package, *models.Shipment, error) {
	var pkg models.Package
	err := s.db.GetContext(ctx, &pkg,
		`SELECT * FROM shipment_details WHERE tracking_number = $1 AND deleted_at IS NULL`, trackingNumber)
	if err != nil {
		return nil, nil, notFound(err, services.ErrNotFound)
	}

	shipment, err := s.GetShipment(ctx, pkg.ShipmentID)
	if err != nil {
		return nil, nil, err
	}
	return &pkg, shipment, nil
}

func (s *PostgresStore) ApplyStatusChange(ctx context.Context, trackingNumber string, fn services.StatusChangeFunc) (*models.TrackingEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pkg models.Package
	err = tx.GetContext(ctx, &pkg,
		`SELECT * FROM shipment_details WHERE tracking_number = $1 AND deleted_at IS NULL FOR UPDATE`, trackingNumber)
	if err != nil {
		return nil, notFound(err, services.ErrNotFound)
	}

	entry, err := fn(&pkg)
	if err != nil {
		return nil, err
	}

	var latest sql.NullInt64
	if err := tx.GetContext(ctx, &latest,
		`SELECT MAX(timestamp) FROM tracking_history WHERE tracking_number = $1`, pkg.TrackingNumber); err != nil {
		return nil, fmt.Errorf("failed to read latest history entry: %w", err)
	}

	now := time.Now().Unix()
	entry.Timestamp = now
	if latest.Valid && latest.Int64 > now {
		entry.Timestamp = latest.Int64
	}
	entry.TrackingNumber = &pkg.TrackingNumber
	entry.ShipmentID = &pkg.ShipmentID

	if _, err := tx.ExecContext(ctx,
		`UPDATE shipment_details SET status = $1, updated_at = $2 WHERE tracking_number = $3`,
		entry.Status, now, pkg.TrackingNumber); err != nil {
		return nil, fmt.Errorf("failed to update package status: %w", err)
	}

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO tracking_history (tracking_number, shipment_id, timestamp, location, status, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, entry.TrackingNumber, entry.ShipmentID, entry.Timestamp, entry.Location, entry.Status, entry.Details).Scan(&entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status change: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, trackingNumber string) ([]models.TrackingEntry, error) {
	entries := []models.TrackingEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM tracking_history
		WHERE tracking_number = $1
		ORDER BY timestamp ASC, id ASC
	`, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := s.db.GetContext(ctx, &shipment, `SELECT * FROM shipments WHERE id = $1`, id); err != nil {
		return nil, notFound(err, services.ErrNotFound)
	}
	return &shipment, nil
}

func (s *PostgresStore) ShipmentExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM shipments WHERE id = $1)`, id)
	return exists, err
}

func (s *PostgresStore) ListShipmentPackages(ctx context.Context, shipmentID string) ([]models.Package, error) {
	packages := []models.Package{}
	err := s.db.SelectContext(ctx, &packages, `
		SELECT * FROM shipment_details
		WHERE shipment_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, tracking_number ASC
	`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipment packages: %w", err)
	}
	return packages, nil
}

func (s *PostgresStore) ListDriverPackages(ctx context.Context, driverID string) ([]models.Package, error) {
	packages := []models.Package{}
	err := s.db.SelectContext(ctx, &packages, `
		SELECT d.* FROM shipment_details d
		JOIN shipments s ON s.id = d.shipment_id
		WHERE s.driver_id = $1 AND d.deleted_at IS NULL
		ORDER BY s.created_at ASC, d.shipment_id ASC, d.created_at ASC, d.tracking_number ASC
	`, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver packages: %w", err)
	}
	return packages, nil
}

func (s *PostgresStore) ListTransportPackages(ctx context.Context, transportID string) ([]models.Package, error) {
	packages := []models.Package{}
	err := s.db.SelectContext(ctx, &packages, `
		SELECT d.* FROM shipment_details d
		JOIN shipments s ON s.id = d.shipment_id
		WHERE s.transport_id = $1 AND d.deleted_at IS NULL
		ORDER BY d.shipment_id ASC, d.created_at ASC, d.tracking_number ASC
	`, transportID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transport packages: %w", err)
	}
	return packages, nil
}

func (s *PostgresStore) CreateShipmentFromOrder(ctx context.Context, organizationID, orderID string, fn services.ShipmentDraftFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		`SELECT * FROM orders WHERE id = $1 AND organization_id = $2 FOR UPDATE`, orderID, organizationID)
	if err != nil {
		return notFound(err, services.ErrOrderNotFound)
	}

	var existing *models.Shipment
	var found models.Shipment
	err = tx.GetContext(ctx, &found, `SELECT * FROM shipments WHERE order_id = $1 LIMIT 1`, orderID)
	switch {
	case err == nil:
		existing = &found
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check existing shipment: %w", err)
	}

	draft, err := fn(&order, existing)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	draft.Shipment.CreatedAt = now
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO shipments (id, organization_id, transport_id, driver_id, order_id, budget_id,
			warehouse_id, origin_address, departure_date, created_at)
		VALUES (:id, :organization_id, :transport_id, :driver_id, :order_id, :budget_id,
			:warehouse_id, :origin_address, :departure_date, :created_at)
	`, &draft.Shipment); err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}

	for i := range draft.Packages {
		pkg := &draft.Packages[i]
		pkg.CreatedAt = now
		pkg.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO shipment_details (tracking_number, shipment_id, order_id, receiver_name,
				receiver_contact, receiver_address, latitude, longitude, weight_kg, length_cm,
				width_cm, height_cm, charges, status, created_at, updated_at)
			VALUES (:tracking_number, :shipment_id, :order_id, :receiver_name,
				:receiver_contact, :receiver_address, :latitude, :longitude, :weight_kg, :length_cm,
				:width_cm, :height_cm, :charges, :status, :created_at, :updated_at)
		`, pkg); err != nil {
			return fmt.Errorf("failed to insert package: %w", err)
		}
	}

	for i := range draft.History {
		entry := &draft.History[i]
		entry.Timestamp = now
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO tracking_history (tracking_number, shipment_id, timestamp, location, status, details)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, entry.TrackingNumber, entry.ShipmentID, entry.Timestamp, entry.Location, entry.Status, entry.Details).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit shipment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTransport(ctx context.Context, id string) (*models.Transport, error) {
	var transport models.Transport
	if err := s.db.GetContext(ctx, &transport, `SELECT * FROM transports WHERE id = $1`, id); err != nil {
		return nil, notFound(err, services.ErrNotFound)
	}
	return &transport, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1`, id); err != nil {
		return nil, notFound(err, services.ErrNotFound)
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = $1`, email); err != nil {
		return nil, notFound(err, services.ErrNotFound)
	}
	return &user, nil
}

func (s *PostgresStore) InsertLocationSample(ctx context.Context, sample *models.LocationSample) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO gps_locations (shipment_id, driver_id, latitude, longitude, speed, accuracy, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, sample.ShipmentID, sample.DriverID, sample.Latitude, sample.Longitude,
		sample.Speed, sample.Accuracy, sample.RecordedAt).Scan(&sample.ID)
	if err != nil {
		return fmt.Errorf("failed to insert location sample: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestShipmentLocation(ctx context.Context, shipmentID string) (*models.LocationSample, error) {
	return s.latestLocation(ctx, `SELECT * FROM gps_locations WHERE shipment_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`, shipmentID)
}

func (s *PostgresStore) LatestDriverLocation(ctx context.Context, driverID string) (*models.LocationSample, error) {
	return s.latestLocation(ctx, `SELECT * FROM gps_locations WHERE driver_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`, driverID)
}

func (s *PostgresStore) latestLocation(ctx context.Context, query, arg string) (*models.LocationSample, error) {
	var sample models.LocationSample
	err := s.db.GetContext(ctx, &sample, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest location: %w", err)
	}
	return &sample, nil
}
