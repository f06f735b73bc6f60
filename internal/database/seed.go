package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"logisync-backend/internal/logger"
	"logisync-backend/internal/models"
)

// DemoOrganizationID owns every seeded row
const DemoOrganizationID = "org-demo"

// Demo is a small dataset for trying the API locally
type Demo struct {
	Users      []models.User
	Transports []models.Transport
	Orders     []models.Order
}

func ptr[T any](v T) *T { return &v }

// DemoData builds the demo dataset with bcrypt-hashed passwords
func DemoData() (*Demo, error) {
	driverPassword, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return &Demo{
		Users: []models.User{
			{ID: "usr-driver-1", OrganizationID: DemoOrganizationID, Email: "driver@logisync.dev", Password: string(driverPassword), Name: "Juan Dela Cruz", Role: models.RoleDriver},
			{ID: "usr-admin-1", OrganizationID: DemoOrganizationID, Email: "admin@logisync.dev", Password: string(adminPassword), Name: "Maria Santos", Role: models.RoleAdmin},
		},
		Transports: []models.Transport{
			{ID: "trn-van-1", OrganizationID: DemoOrganizationID, PlateNumber: "NAB 1234", VehicleType: "van", CapacityKg: 1000, VolumeCapacityM3: 8, DriverID: ptr("usr-driver-1")},
		},
		Orders: []models.Order{
			{ID: "ord-1001", OrganizationID: DemoOrganizationID, Status: models.OrderStatusFulfilled, CustomerName: "Ana Reyes", CustomerContact: "+63 917 555 0101", DeliveryAddress: "Rizal Park, Ermita, Manila", Latitude: ptr(14.5826), Longitude: ptr(120.9787), WeightKg: 4.5},
			{ID: "ord-1002", OrganizationID: DemoOrganizationID, Status: models.OrderStatusFulfilled, CustomerName: "Ben Garcia", CustomerContact: "+63 917 555 0102", DeliveryAddress: "Intramuros, Manila", Latitude: ptr(14.5906), Longitude: ptr(120.9750), WeightKg: 12},
			{ID: "ord-1003", OrganizationID: DemoOrganizationID, Status: models.OrderStatusProcessing, CustomerName: "Carla Lim", CustomerContact: "+63 917 555 0103", DeliveryAddress: "Binondo, Manila", WeightKg: 2},
		},
	}, nil
}

// SeedPostgres inserts the demo dataset, skipping rows that already exist
func SeedPostgres(ctx context.Context, db *sqlx.DB, demo *Demo) error {
	l := logger.Get()

	for _, u := range demo.Users {
		if _, err := db.NamedExecContext(ctx, `
			INSERT INTO users (id, organization_id, email, password, name, role)
			VALUES (:id, :organization_id, :email, :password, :name, :role)
			ON CONFLICT DO NOTHING
		`, u); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
	}
	for _, t := range demo.Transports {
		if _, err := db.NamedExecContext(ctx, `
			INSERT INTO transports (id, organization_id, plate_number, vehicle_type, capacity_kg, volume_capacity_m3, driver_id)
			VALUES (:id, :organization_id, :plate_number, :vehicle_type, :capacity_kg, :volume_capacity_m3, :driver_id)
			ON CONFLICT DO NOTHING
		`, t); err != nil {
			return fmt.Errorf("failed to seed transport %s: %w", t.ID, err)
		}
	}
	for _, o := range demo.Orders {
		if _, err := db.NamedExecContext(ctx, `
			INSERT INTO orders (id, organization_id, status, customer_name, customer_contact, delivery_address, latitude, longitude, weight_kg)
			VALUES (:id, :organization_id, :status, :customer_name, :customer_contact, :delivery_address, :latitude, :longitude, :weight_kg)
			ON CONFLICT DO NOTHING
		`, o); err != nil {
			return fmt.Errorf("failed to seed order %s: %w", o.ID, err)
		}
	}

	logDemo(l, demo)
	return nil
}

// Seed loads the demo dataset into the memory store
func (s *MemoryStore) Seed(demo *Demo) {
	for _, u := range demo.Users {
		s.AddUser(u)
	}
	for _, t := range demo.Transports {
		s.AddTransport(t)
	}
	for _, o := range demo.Orders {
		s.AddOrder(o)
	}
	logDemo(logger.Get(), demo)
}

func logDemo(l *zap.Logger, demo *Demo) {
	l.Info("Demo data seeded",
		zap.String("organization_id", DemoOrganizationID),
		zap.Int("users", len(demo.Users)),
		zap.Int("orders", len(demo.Orders)),
		zap.String("driver_login", "driver@logisync.dev / driver123"),
		zap.String("admin_login", "admin@logisync.dev / admin123"))
}
