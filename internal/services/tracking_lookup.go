package services

import (
	"context"
	"errors"
	"strings"

	"logisync-backend/internal/models"
)

// TrackingView is the public, unauthenticated view of one package
type TrackingView struct {
	TrackingNumber  string                 `json:"tracking_number"`
	ShipmentID      string                 `json:"shipment_id"`
	Status          models.Status          `json:"status"`
	ShipmentStatus  models.Status          `json:"shipment_status"`
	ReceiverName    string                 `json:"receiver_name"`
	ReceiverAddress string                 `json:"receiver_address"`
	OriginAddress   string                 `json:"origin_address"`
	DriverName      *string                `json:"driver_name,omitempty"`
	VehiclePlate    *string                `json:"vehicle_plate,omitempty"`
	VehicleType     *string                `json:"vehicle_type,omitempty"`
	LastLocation    *models.LocationSample `json:"last_location,omitempty"`
	History         []models.TrackingEntry `json:"history"`
}

// ShipmentDetail is the administrator view of a shipment
type ShipmentDetail struct {
	Shipment models.Shipment        `json:"shipment"`
	Status   models.Status          `json:"status"`
	Packages []models.Package       `json:"packages"`
	Load     *Load                  `json:"load,omitempty"`
	Location *models.LocationSample `json:"last_location,omitempty"`
}

// Track returns the public tracking view for a tracking number
func (s *ShipmentService) Track(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	pkg, shipment, err := s.store.GetPackage(ctx, strings.TrimSpace(trackingNumber))
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListHistory(ctx, pkg.TrackingNumber)
	if err != nil {
		return nil, err
	}
	siblings, err := s.store.ListShipmentPackages(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}
	last, err := s.store.LatestShipmentLocation(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}

	view := &TrackingView{
		TrackingNumber:  pkg.TrackingNumber,
		ShipmentID:      shipment.ID,
		Status:          pkg.Status,
		ShipmentStatus:  models.DeriveShipmentStatus(siblings),
		ReceiverName:    pkg.ReceiverName,
		ReceiverAddress: pkg.ReceiverAddress,
		OriginAddress:   shipment.OriginAddress,
		LastLocation:    last,
		History:         history,
	}

	if shipment.DriverID != nil {
		driver, err := s.store.GetUser(ctx, *shipment.DriverID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if driver != nil {
			view.DriverName = &driver.Name
		}
	}
	if shipment.TransportID != nil {
		transport, err := s.store.GetTransport(ctx, *shipment.TransportID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if transport != nil {
			view.VehiclePlate = &transport.PlateNumber
			view.VehicleType = &transport.VehicleType
		}
	}

	return view, nil
}

// GetShipmentDetail returns a shipment of the caller's organization with its packages and load
func (s *ShipmentService) GetShipmentDetail(ctx context.Context, organizationID, shipmentID string) (*ShipmentDetail, error) {
	shipment, err := s.store.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if shipment.OrganizationID != organizationID {
		return nil, ErrNotFound
	}

	packages, err := s.store.ListShipmentPackages(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}
	last, err := s.store.LatestShipmentLocation(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}

	detail := &ShipmentDetail{
		Shipment: *shipment,
		Status:   models.DeriveShipmentStatus(packages),
		Packages: packages,
		Location: last,
	}
	if shipment.TransportID != nil {
		if detail.Load, err = s.VehicleLoad(ctx, *shipment.TransportID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}
