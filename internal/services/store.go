package services

import (
	"context"

	"logisync-backend/internal/models"
	"logisync-backend/internal/sessions"
)

// StatusChangeFunc inspects the locked package row and returns the history entry to append.
// Returning an error aborts the change.
type StatusChangeFunc func(current *models.Package) (*models.TrackingEntry, error)

// ShipmentDraft is everything inserted for a new shipment
type ShipmentDraft struct {
	Shipment models.Shipment
	Packages []models.Package
	History  []models.TrackingEntry
}

// ShipmentDraftFunc builds a shipment from the locked order row.
// existing is the shipment already generated from the order, if any.
type ShipmentDraftFunc func(order *models.Order, existing *models.Shipment) (*ShipmentDraft, error)

// Store is the persistence contract of the delivery core.
// Lookups return ErrNotFound when the row does not exist; soft-deleted packages count as missing.
type Store interface {
	GetPackage(ctx context.Context, trackingNumber string) (*models.Package, *models.Shipment, error)
	// ApplyStatusChange locks the package row, runs fn, and in the same transaction
	// sets the package status and appends the entry fn returned.
	ApplyStatusChange(ctx context.Context, trackingNumber string, fn StatusChangeFunc) (*models.TrackingEntry, error)
	ListHistory(ctx context.Context, trackingNumber string) ([]models.TrackingEntry, error)

	GetShipment(ctx context.Context, id string) (*models.Shipment, error)
	ShipmentExists(ctx context.Context, id string) (bool, error)
	ListShipmentPackages(ctx context.Context, shipmentID string) ([]models.Package, error)
	// ListDriverPackages returns every live package on shipments assigned to the driver
	ListDriverPackages(ctx context.Context, driverID string) ([]models.Package, error)
	// ListTransportPackages returns every live package on shipments carried by the transport
	ListTransportPackages(ctx context.Context, transportID string) ([]models.Package, error)
	// CreateShipmentFromOrder locks the order row and inserts the draft fn returns
	// in one transaction. A missing order (or one outside the organization) is ErrOrderNotFound.
	CreateShipmentFromOrder(ctx context.Context, organizationID, orderID string, fn ShipmentDraftFunc) error

	GetTransport(ctx context.Context, id string) (*models.Transport, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	InsertLocationSample(ctx context.Context, sample *models.LocationSample) error
	// LatestShipmentLocation returns nil when no sample exists
	LatestShipmentLocation(ctx context.Context, shipmentID string) (*models.LocationSample, error)
	LatestDriverLocation(ctx context.Context, driverID string) (*models.LocationSample, error)
}

// SessionStore keeps live tracking sessions. Missing sessions return sessions.ErrNoSession.
type SessionStore interface {
	Start(ctx context.Context, session sessions.Session) error
	Get(ctx context.Context, driverID string) (*sessions.Session, error)
	Touch(ctx context.Context, driverID string, lat, lng float64, at int64) (*sessions.Session, error)
	AdvanceStop(ctx context.Context, driverID string) (*sessions.Session, error)
	Stop(ctx context.Context, driverID string) error
}
