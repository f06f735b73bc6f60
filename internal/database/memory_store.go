package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

var _ services.Store = (*MemoryStore)(nil)

// MemoryStore is a process-local services.Store for demos and tests.
// A single mutex stands in for row locks.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[string]models.User
	orders     map[string]models.Order
	transports map[string]models.Transport
	shipments  map[string]models.Shipment
	packages   map[string]models.Package
	history    []models.TrackingEntry
	samples    []models.LocationSample
	nextID     int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      map[string]models.User{},
		orders:     map[string]models.Order{},
		transports: map[string]models.Transport{},
		shipments:  map[string]models.Shipment{},
		packages:   map[string]models.Package{},
	}
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error { return nil }

// AddUser inserts or replaces a user
func (s *MemoryStore) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddOrder inserts or replaces an order
func (s *MemoryStore) AddOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// AddTransport inserts or replaces a transport
func (s *MemoryStore) AddTransport(t models.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transports[t.ID] = t
}

// AddShipment inserts a shipment with its packages as they are, without history
func (s *MemoryStore) AddShipment(shipment models.Shipment, packages ...models.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipments[shipment.ID] = shipment
	for _, p := range packages {
		p.ShipmentID = shipment.ID
		s.packages[p.TrackingNumber] = p
	}
}

func (s *MemoryStore) livePackage(trackingNumber string) (models.Package, bool) {
	p, ok := s.packages[trackingNumber]
	if !ok || p.DeletedAt != nil {
		return models.Package{}, false
	}
	return p, true
}

func (s *MemoryStore) GetPackage(_ context.Context, trackingNumber string) (*models.Package, *models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.livePackage(trackingNumber)
	if !ok {
		return nil, nil, services.ErrNotFound
	}
	shipment, ok := s.shipments[pkg.ShipmentID]
	if !ok {
		return nil, nil, services.ErrNotFound
	}
	return &pkg, &shipment, nil
}

func (s *MemoryStore) ApplyStatusChange(_ context.Context, trackingNumber string, fn services.StatusChangeFunc) (*models.TrackingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.livePackage(trackingNumber)
	if !ok {
		return nil, services.ErrNotFound
	}

	current := pkg
	entry, err := fn(&current)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	entry.Timestamp = now
	for _, h := range s.history {
		if h.TrackingNumber != nil && *h.TrackingNumber == trackingNumber && h.Timestamp > entry.Timestamp {
			entry.Timestamp = h.Timestamp
		}
	}
	entry.TrackingNumber = &pkg.TrackingNumber
	entry.ShipmentID = &pkg.ShipmentID
	s.nextID++
	entry.ID = s.nextID

	pkg.Status = entry.Status
	pkg.UpdatedAt = now
	s.packages[trackingNumber] = pkg
	s.history = append(s.history, *entry)

	out := *entry
	return &out, nil
}

func (s *MemoryStore) ListHistory(_ context.Context, trackingNumber string) ([]models.TrackingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := []models.TrackingEntry{}
	for _, h := range s.history {
		if h.TrackingNumber != nil && *h.TrackingNumber == trackingNumber {
			entries = append(entries, h)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp < entries[j].Timestamp
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *MemoryStore) GetShipment(_ context.Context, id string) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shipment, ok := s.shipments[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &shipment, nil
}

func (s *MemoryStore) ShipmentExists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.shipments[id]
	return ok, nil
}

func (s *MemoryStore) ListShipmentPackages(_ context.Context, shipmentID string) ([]models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.packagesWhere(func(p models.Package) bool { return p.ShipmentID == shipmentID }), nil
}

func (s *MemoryStore) ListDriverPackages(_ context.Context, driverID string) ([]models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.packagesWhere(func(p models.Package) bool {
		shipment, ok := s.shipments[p.ShipmentID]
		return ok && shipment.AssignedTo(driverID)
	}), nil
}

func (s *MemoryStore) ListTransportPackages(_ context.Context, transportID string) ([]models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.packagesWhere(func(p models.Package) bool {
		shipment, ok := s.shipments[p.ShipmentID]
		return ok && shipment.TransportID != nil && *shipment.TransportID == transportID
	}), nil
}

// packagesWhere returns matching live packages ordered by shipment, creation time, tracking number
func (s *MemoryStore) packagesWhere(match func(models.Package) bool) []models.Package {
	out := []models.Package{}
	for _, p := range s.packages {
		if p.DeletedAt == nil && match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ShipmentID != b.ShipmentID {
			return a.ShipmentID < b.ShipmentID
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.TrackingNumber < b.TrackingNumber
	})
	return out
}

func (s *MemoryStore) CreateShipmentFromOrder(_ context.Context, organizationID, orderID string, fn services.ShipmentDraftFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.OrganizationID != organizationID {
		return services.ErrOrderNotFound
	}

	var existing *models.Shipment
	for _, sh := range s.shipments {
		if sh.OrderID != nil && *sh.OrderID == orderID {
			found := sh
			existing = &found
			break
		}
	}

	draft, err := fn(&order, existing)
	if err != nil {
		return err
	}
	if _, taken := s.shipments[draft.Shipment.ID]; taken {
		return services.ErrShipmentExists
	}

	now := time.Now().Unix()
	draft.Shipment.CreatedAt = now
	s.shipments[draft.Shipment.ID] = draft.Shipment
	for _, p := range draft.Packages {
		p.CreatedAt = now
		p.UpdatedAt = now
		s.packages[p.TrackingNumber] = p
	}
	for _, h := range draft.History {
		h.Timestamp = now
		s.nextID++
		h.ID = s.nextID
		s.history = append(s.history, h)
	}
	return nil
}

func (s *MemoryStore) GetTransport(_ context.Context, id string) (*models.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transports[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *MemoryStore) InsertLocationSample(_ context.Context, sample *models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[sample.ShipmentID]; !ok {
		return services.ErrNotFound
	}
	s.nextID++
	sample.ID = s.nextID
	s.samples = append(s.samples, *sample)
	return nil
}

func (s *MemoryStore) LatestShipmentLocation(_ context.Context, shipmentID string) (*models.LocationSample, error) {
	return s.latest(func(l models.LocationSample) bool { return l.ShipmentID == shipmentID }), nil
}

func (s *MemoryStore) LatestDriverLocation(_ context.Context, driverID string) (*models.LocationSample, error) {
	return s.latest(func(l models.LocationSample) bool { return l.DriverID == driverID }), nil
}

// Samples returns every stored sample for a shipment in insertion order
func (s *MemoryStore) Samples(shipmentID string) []models.LocationSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.LocationSample
	for _, l := range s.samples {
		if l.ShipmentID == shipmentID {
			out = append(out, l)
		}
	}
	return out
}

func (s *MemoryStore) latest(match func(models.LocationSample) bool) *models.LocationSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.samples) - 1; i >= 0; i-- {
		if match(s.samples[i]) {
			found := s.samples[i]
			return &found
		}
	}
	return nil
}
