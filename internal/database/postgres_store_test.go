package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logisync-backend/internal/geo"
	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

// Runs against a disposable database: TEST_DATABASE_URL=postgres://... go test ./internal/database
func newPostgresStore(t *testing.T) *PostgresStore {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := Connect(url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`DROP TABLE IF EXISTS gps_locations, tracking_history, shipment_details, shipments, transports, orders, users CASCADE`)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	demo, err := DemoData()
	require.NoError(t, err)
	require.NoError(t, SeedPostgres(context.Background(), db, demo))

	return NewPostgresStore(db)
}

func TestPostgresStore_ShipmentLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	svc := services.NewShipmentService(store, nil, nil, services.Options{})

	created, err := svc.CreateShipmentFromOrder(ctx, services.NewShipment{
		OrganizationID: DemoOrganizationID,
		OrderID:        "ord-1001",
		TransportID:    ptr("trn-van-1"),
		OriginAddress:  "Port Area, Manila",
	})
	require.NoError(t, err)
	require.Len(t, created.TrackingNumbers, 1)

	_, err = svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: DemoOrganizationID, OrderID: "ord-1001"})
	assert.ErrorIs(t, err, services.ErrShipmentExists)

	tn := created.TrackingNumbers[0]
	entry, err := store.ApplyStatusChange(ctx, tn, func(current *models.Package) (*models.TrackingEntry, error) {
		assert.Equal(t, models.StatusPending, current.Status)
		return &models.TrackingEntry{Status: models.StatusPickedUp, Location: "Port Area, Manila"}, nil
	})
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)

	history, err := store.ListHistory(ctx, tn)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusPending, history[0].Status)
	assert.Equal(t, models.StatusPickedUp, history[1].Status)

	pkgs, err := store.ListDriverPackages(ctx, "usr-driver-1")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, models.StatusPickedUp, pkgs[0].Status)

	pkgs, err = store.ListTransportPackages(ctx, "trn-van-1")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, tn, pkgs[0].TrackingNumber)
}

func TestPostgresStore_LocationSamples(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	svc := services.NewShipmentService(store, nil, nil, services.Options{})

	created, err := svc.CreateShipmentFromOrder(ctx, services.NewShipment{
		OrganizationID: DemoOrganizationID,
		OrderID:        "ord-1002",
		TransportID:    ptr("trn-van-1"),
	})
	require.NoError(t, err)

	latest, err := store.LatestShipmentLocation(ctx, created.ShipmentID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	sample := &models.LocationSample{ShipmentID: created.ShipmentID, DriverID: "usr-driver-1", RecordedAt: 10}
	sample.Latitude, sample.Longitude = geo.Coordinate(14.5995123), geo.Coordinate(120.9842456)
	require.NoError(t, store.InsertLocationSample(ctx, sample))

	latest, err = store.LatestDriverLocation(ctx, "usr-driver-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "14.5995123", latest.Latitude.String())
}
