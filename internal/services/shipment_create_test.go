package services_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logisync-backend/internal/events"
	"logisync-backend/internal/geo"
	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

var (
	trackingPattern = regexp.MustCompile(`^TRK-[0-9A-F]{32}$`)
	shipmentPattern = regexp.MustCompile(`^SHP-[A-Z0-9]{6}$`)
)

func TestNewTrackingNumber(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tn := services.NewTrackingNumber()
		assert.Regexp(t, trackingPattern, tn)
		assert.False(t, seen[tn])
		seen[tn] = true
	}
}

func TestCreateShipmentFromOrder_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddOrder(models.Order{
		ID: "ord-1", OrganizationID: orgID, Status: models.OrderStatusFulfilled,
		CustomerName: "Ana Reyes", DeliveryAddress: "Rizal Park", Latitude: ptr(14.58), Longitude: ptr(120.97), WeightKg: 4.5,
	})

	created, err := f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{
		OrganizationID: orgID,
		OrderID:        "ord-1",
		TransportID:    ptr("trn-1"),
		OriginAddress:  "Port Area",
	})
	require.NoError(t, err)

	assert.Regexp(t, shipmentPattern, created.ShipmentID)
	require.Len(t, created.TrackingNumbers, 1)
	assert.Regexp(t, trackingPattern, created.TrackingNumbers[0])
	assert.Equal(t, driverID, *created.DriverID)

	pkg, shipment, err := f.store.GetPackage(ctx, created.TrackingNumbers[0])
	require.NoError(t, err)
	assert.Equal(t, "Ana Reyes", pkg.ReceiverName)
	assert.Equal(t, 4.5, pkg.WeightKg)
	assert.Equal(t, models.StatusPending, pkg.Status)
	assert.True(t, shipment.AssignedTo(driverID))

	history := f.history(t, pkg.TrackingNumber)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].Status)
	assert.Equal(t, "Shipment created", *history[0].Details)
	assert.Equal(t, "Port Area", history[0].Location)

	published := f.events.ofType(events.TypeShipmentCreated)
	require.Len(t, published, 1)
	assert.Equal(t, created.ShipmentID, published[0].ShipmentID)
}

func TestCreateShipmentFromOrder_PackageLines(t *testing.T) {
	f := newFixture(t)
	f.store.AddOrder(models.Order{ID: "ord-1", OrganizationID: orgID, Status: models.OrderStatusFulfilled, CustomerName: "Ana", DeliveryAddress: "Ermita"})

	created, err := f.svc.CreateShipmentFromOrder(context.Background(), services.NewShipment{
		OrganizationID: orgID,
		OrderID:        "ord-1",
		Packages: []services.NewPackage{
			{ReceiverName: "Ana", WeightKg: 1, Charges: 15000},
			{WeightKg: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, created.TrackingNumbers, 2)
	assert.Nil(t, created.DriverID)

	pkg, _, err := f.store.GetPackage(context.Background(), created.TrackingNumbers[1])
	require.NoError(t, err)
	assert.Equal(t, "Ana", pkg.ReceiverName)
	assert.Equal(t, "Ermita", pkg.ReceiverAddress)
}

func TestCreateShipmentFromOrder_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddOrder(models.Order{ID: "ord-open", OrganizationID: orgID, Status: models.OrderStatusProcessing})
	f.store.AddOrder(models.Order{ID: "ord-done", OrganizationID: orgID, Status: models.OrderStatusFulfilled})
	f.store.AddOrder(models.Order{ID: "ord-foreign", OrganizationID: "org-2", Status: models.OrderStatusFulfilled})

	_, err := f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: orgID, OrderID: "ord-missing"})
	assert.ErrorIs(t, err, services.ErrOrderNotFound)

	_, err = f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: orgID, OrderID: "ord-foreign"})
	assert.ErrorIs(t, err, services.ErrOrderNotFound)

	_, err = f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: orgID, OrderID: "ord-open"})
	assert.ErrorIs(t, err, services.ErrOrderNotFulfilled)

	_, err = f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: orgID, OrderID: "ord-done"})
	require.NoError(t, err)
	_, err = f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: orgID, OrderID: "ord-done"})
	assert.ErrorIs(t, err, services.ErrShipmentExists)

	_, err = f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{OrganizationID: "org-2", OrderID: "ord-foreign", TransportID: ptr("trn-1")})
	var verr *services.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "transport_id")

	_, err = f.svc.CreateShipmentFromOrder(ctx, services.NewShipment{
		OrganizationID: orgID,
		OrderID:        "ord-open",
		Packages:       []services.NewPackage{{Charges: -1}},
	})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "packages[0].charges")
}

func TestTrack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pickUpAll(t)
	_, err := f.svc.StartTracking(ctx, driverID, orgID, &geo.Point{Latitude: 14.5995, Longitude: 120.9842})
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, services.StatusUpdate{TrackingNumber: "TRK-A", DriverID: driverID, Status: "delivered"})
	require.NoError(t, err)

	view, err := f.svc.Track(ctx, "TRK-A")
	require.NoError(t, err)

	assert.Equal(t, models.StatusDelivered, view.Status)
	assert.Equal(t, models.StatusInTransit, view.ShipmentStatus)
	assert.Equal(t, "Juan Dela Cruz", *view.DriverName)
	assert.Equal(t, "NAB 1234", *view.VehiclePlate)
	require.NotNil(t, view.LastLocation)
	assert.Equal(t, "14.5995", view.LastLocation.Latitude.String())

	require.Len(t, view.History, 3)
	assert.Equal(t, models.StatusPickedUp, view.History[0].Status)
	assert.Equal(t, models.StatusDelivered, view.History[2].Status)

	_, err = f.svc.Track(ctx, "TRK-UNKNOWN")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestGetShipmentDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.svc.GetShipmentDetail(ctx, orgID, shipmentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, detail.Status)
	assert.Len(t, detail.Packages, 2)
	require.NotNil(t, detail.Load)
	assert.False(t, detail.Load.Overloaded)

	_, err = f.svc.GetShipmentDetail(ctx, "org-2", shipmentID)
	assert.ErrorIs(t, err, services.ErrNotFound)
}
