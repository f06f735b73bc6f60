package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

func seededStore() *MemoryStore {
	store := NewMemoryStore()
	store.AddShipment(
		models.Shipment{ID: "SHP-AAAAAA", OrganizationID: "org-1", DriverID: ptr("drv-1")},
		models.Package{TrackingNumber: "TRK-1", Status: models.StatusPickedUp},
		models.Package{TrackingNumber: "TRK-2", Status: models.StatusPickedUp, DeletedAt: ptr(int64(5))},
	)
	return store
}

func TestMemoryStore_ApplyStatusChange(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	change := func(status models.Status) services.StatusChangeFunc {
		return func(current *models.Package) (*models.TrackingEntry, error) {
			return &models.TrackingEntry{Status: status, Location: "Manila"}, nil
		}
	}

	first, err := store.ApplyStatusChange(ctx, "TRK-1", change(models.StatusInTransit))
	require.NoError(t, err)
	second, err := store.ApplyStatusChange(ctx, "TRK-1", change(models.StatusOutForDelivery))
	require.NoError(t, err)

	assert.Equal(t, "SHP-AAAAAA", *first.ShipmentID)
	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
	assert.Greater(t, second.ID, first.ID)

	pkg, _, err := store.GetPackage(ctx, "TRK-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOutForDelivery, pkg.Status)

	history, err := store.ListHistory(ctx, "TRK-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusInTransit, history[0].Status)
	assert.Equal(t, models.StatusOutForDelivery, history[1].Status)
}

func TestMemoryStore_ApplyStatusChangeAborts(t *testing.T) {
	store := seededStore()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.ApplyStatusChange(ctx, "TRK-1", func(*models.Package) (*models.TrackingEntry, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	pkg, _, err := store.GetPackage(ctx, "TRK-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPickedUp, pkg.Status)

	history, err := store.ListHistory(ctx, "TRK-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStore_SoftDeletedPackagesAreHidden(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	_, _, err := store.GetPackage(ctx, "TRK-2")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = store.ApplyStatusChange(ctx, "TRK-2", func(*models.Package) (*models.TrackingEntry, error) {
		return &models.TrackingEntry{Status: models.StatusInTransit}, nil
	})
	assert.ErrorIs(t, err, services.ErrNotFound)

	pkgs, err := store.ListDriverPackages(ctx, "drv-1")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "TRK-1", pkgs[0].TrackingNumber)

	pkgs, err = store.ListDriverPackages(ctx, "drv-2")
	require.NoError(t, err)
	assert.Empty(t, pkgs)
}

func TestMemoryStore_CreateShipmentFromOrder(t *testing.T) {
	store := NewMemoryStore()
	store.AddOrder(models.Order{ID: "ord-1", OrganizationID: "org-1", Status: models.OrderStatusFulfilled})
	ctx := context.Background()

	err := store.CreateShipmentFromOrder(ctx, "org-2", "ord-1", nil)
	assert.ErrorIs(t, err, services.ErrOrderNotFound)

	draft := func(order *models.Order, existing *models.Shipment) (*services.ShipmentDraft, error) {
		if existing != nil {
			return nil, services.ErrShipmentExists
		}
		tn := "TRK-9"
		id := "SHP-BBBBBB"
		return &services.ShipmentDraft{
			Shipment: models.Shipment{ID: id, OrganizationID: order.OrganizationID, OrderID: &order.ID},
			Packages: []models.Package{{TrackingNumber: tn, ShipmentID: id, Status: models.StatusPending}},
			History:  []models.TrackingEntry{{TrackingNumber: &tn, ShipmentID: &id, Status: models.StatusPending, Location: "Warehouse"}},
		}, nil
	}

	require.NoError(t, store.CreateShipmentFromOrder(ctx, "org-1", "ord-1", draft))
	assert.ErrorIs(t, store.CreateShipmentFromOrder(ctx, "org-1", "ord-1", draft), services.ErrShipmentExists)

	history, err := store.ListHistory(ctx, "TRK-9")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotZero(t, history[0].Timestamp)
}

func TestMemoryStore_LatestLocation(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	latest, err := store.LatestShipmentLocation(ctx, "SHP-AAAAAA")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.InsertLocationSample(ctx, &models.LocationSample{ShipmentID: "SHP-AAAAAA", DriverID: "drv-1", RecordedAt: 1}))
	require.NoError(t, store.InsertLocationSample(ctx, &models.LocationSample{ShipmentID: "SHP-AAAAAA", DriverID: "drv-1", RecordedAt: 2}))
	assert.ErrorIs(t, store.InsertLocationSample(ctx, &models.LocationSample{ShipmentID: "SHP-NOPE00"}), services.ErrNotFound)

	latest, err = store.LatestDriverLocation(ctx, "drv-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(2), latest.RecordedAt)
	assert.Len(t, store.Samples("SHP-AAAAAA"), 2)
}

func TestDemoData(t *testing.T) {
	demo, err := DemoData()
	require.NoError(t, err)

	store := NewMemoryStore()
	store.Seed(demo)

	user, err := store.GetUserByEmail(context.Background(), "driver@logisync.dev")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDriver, user.Role)
	assert.NotEqual(t, "driver123", user.Password)
}
