package services

import (
	"context"
	"errors"
	"strings"

	"logisync-backend/internal/models"
)

// PackageFailure records why one package in a batch was not changed
type PackageFailure struct {
	TrackingNumber string `json:"tracking_number"`
	Error          string `json:"error"`
}

// ExceptionReport summarizes a shipment-wide exception
type ExceptionReport struct {
	ShipmentID string           `json:"shipment_id"`
	Updated    []string         `json:"updated"`
	Skipped    []string         `json:"skipped"`
	Failed     []PackageFailure `json:"failed"`
}

// ReportShipmentException flags every open package on a shipment as an exception.
// Each package goes through UpdateStatus so it gets its own history entry.
func (s *ShipmentService) ReportShipmentException(ctx context.Context, driverID, shipmentID, location, description string) (*ExceptionReport, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, &ValidationError{Fields: map[string]string{"description": "description is required"}}
	}

	shipment, err := s.store.GetShipment(ctx, shipmentID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !shipment.AssignedTo(driverID) {
		return nil, ErrNotFoundOrForbidden
	}

	session, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrTrackingRequired
	}

	packages, err := s.store.ListShipmentPackages(ctx, shipment.ID)
	if err != nil {
		return nil, err
	}

	report := &ExceptionReport{
		ShipmentID: shipment.ID,
		Updated:    []string{},
		Skipped:    []string{},
		Failed:     []PackageFailure{},
	}
	for _, pkg := range packages {
		if pkg.Status.IsTerminal() || pkg.Status == models.StatusException {
			report.Skipped = append(report.Skipped, pkg.TrackingNumber)
			continue
		}

		_, err := s.UpdateStatus(ctx, StatusUpdate{
			TrackingNumber: pkg.TrackingNumber,
			DriverID:       driverID,
			Status:         string(models.StatusException),
			Location:       location,
			Notes:          description,
		})
		if err != nil {
			report.Failed = append(report.Failed, PackageFailure{TrackingNumber: pkg.TrackingNumber, Error: err.Error()})
			continue
		}
		report.Updated = append(report.Updated, pkg.TrackingNumber)
	}

	return report, nil
}
