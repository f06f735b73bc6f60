package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"logisync-backend/internal/database"
	"logisync-backend/internal/events"
	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
	"logisync-backend/internal/sessions"
)

const (
	orgID      = "org-1"
	driverID   = "drv-1"
	otherDrvID = "drv-2"
	shipmentID = "SHP-TEST01"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) ofType(t events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store    *database.MemoryStore
	sessions *sessions.RedisStore
	redis    *miniredis.Miniredis
	events   *recorder
	svc      *services.ShipmentService
}

func ptr[T any](v T) *T { return &v }

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore seeds a memory store; wrap, when set, decorates it for the service
func newFixtureWithStore(t *testing.T, wrap func(*database.MemoryStore) services.Store) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	sessionStore, err := sessions.NewRedisStore("redis://"+mr.Addr(), 10*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { sessionStore.Close() })

	store := database.NewMemoryStore()
	store.AddUser(models.User{ID: driverID, OrganizationID: orgID, Name: "Juan Dela Cruz", Role: models.RoleDriver})
	store.AddUser(models.User{ID: otherDrvID, OrganizationID: orgID, Name: "Pedro Penduko", Role: models.RoleDriver})
	store.AddTransport(models.Transport{ID: "trn-1", OrganizationID: orgID, PlateNumber: "NAB 1234", VehicleType: "van", CapacityKg: 10, VolumeCapacityM3: 1, DriverID: ptr(driverID)})
	store.AddShipment(
		models.Shipment{ID: shipmentID, OrganizationID: orgID, DriverID: ptr(driverID), TransportID: ptr("trn-1"), OriginAddress: "Port Area"},
		models.Package{TrackingNumber: "TRK-A", ReceiverName: "Ana", Latitude: ptr(14.6), Longitude: ptr(120.99), WeightKg: 4, Status: models.StatusPending},
		models.Package{TrackingNumber: "TRK-B", ReceiverName: "Ben", Latitude: ptr(14.55), Longitude: ptr(120.95), WeightKg: 3, Status: models.StatusPending},
	)

	var backing services.Store = store
	if wrap != nil {
		backing = wrap(store)
	}

	rec := &recorder{}
	return &fixture{
		store:    store,
		sessions: sessionStore,
		redis:    mr,
		events:   rec,
		svc:      services.NewShipmentService(backing, sessionStore, rec, services.Options{SampleInterval: 10 * time.Millisecond}),
	}
}

func (f *fixture) pickUpAll(t *testing.T) {
	t.Helper()
	for _, tn := range []string{"TRK-A", "TRK-B"} {
		_, err := f.svc.UpdateStatus(context.Background(), services.StatusUpdate{
			TrackingNumber: tn,
			DriverID:       driverID,
			Status:         "picked_up",
			Location:       "Port Area",
		})
		require.NoError(t, err)
	}
}

func (f *fixture) history(t *testing.T, tn string) []models.TrackingEntry {
	t.Helper()
	entries, err := f.store.ListHistory(context.Background(), tn)
	require.NoError(t, err)
	return entries
}

func (f *fixture) status(t *testing.T, tn string) models.Status {
	t.Helper()
	pkg, _, err := f.store.GetPackage(context.Background(), tn)
	require.NoError(t, err)
	return pkg.Status
}
