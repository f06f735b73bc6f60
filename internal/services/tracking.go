package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"logisync-backend/internal/events"
	"logisync-backend/internal/geo"
	"logisync-backend/internal/logger"
	"logisync-backend/internal/models"
	"logisync-backend/internal/sessions"
)

// maxSampleWriters bounds concurrent sample inserts per report
const maxSampleWriters = 8

// LocationInput is one GPS reading from a driver device
type LocationInput struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// Point returns the reading's coordinates
func (in LocationInput) Point() geo.Point {
	return geo.Point{Latitude: in.Latitude, Longitude: in.Longitude}
}

func (in LocationInput) validate() error {
	fields := fieldErrors{}
	if !in.Point().Valid() || (in.Latitude == 0 && in.Longitude == 0) {
		fields.add("location", "latitude and longitude must be a real GPS fix")
	}
	if in.Speed != nil && *in.Speed < 0 {
		fields.add("speed", "speed must not be negative")
	}
	if in.Accuracy != nil && *in.Accuracy < 0 {
		fields.add("accuracy", "accuracy must not be negative")
	}
	return fields.err()
}

// ShipmentFailure records a shipment whose sample could not be stored
type ShipmentFailure struct {
	ShipmentID string `json:"shipment_id"`
	Error      string `json:"error"`
}

// LocationReport is the outcome of one GPS fan-out
type LocationReport struct {
	RecordedAt int64             `json:"recorded_at"`
	Updated    []string          `json:"updated"`
	Failed     []ShipmentFailure `json:"failed"`
}

// TrackingStarted is returned when a session opens
type TrackingStarted struct {
	Session               sessions.Session `json:"session"`
	SampleIntervalSeconds int              `json:"sample_interval_seconds"`
	InTransit             []string         `json:"in_transit"`
	Failed                []PackageFailure `json:"failed"`
	Location              *LocationReport  `json:"location,omitempty"`
}

// StartTracking opens the driver's GPS session and moves every picked-up package to in_transit.
// Every package must have been picked up first.
func (s *ShipmentService) StartTracking(ctx context.Context, driverID, organizationID string, fix *geo.Point) (*TrackingStarted, error) {
	if fix != nil {
		if err := (LocationInput{Latitude: fix.Latitude, Longitude: fix.Longitude}).validate(); err != nil {
			return nil, err
		}
	}

	packages, err := s.store.ListDriverPackages(ctx, driverID)
	if err != nil {
		return nil, err
	}

	pending := 0
	for _, p := range packages {
		if p.Status == models.StatusPending {
			pending++
		}
	}
	if pending > 0 {
		return nil, fmt.Errorf("%w: %d package(s) still pending", ErrPendingPackages, pending)
	}

	// Restarting mid-route keeps the stop pointer and last fix of the live session
	existing, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, err
	}
	session := sessions.Session{
		DriverID:       driverID,
		OrganizationID: organizationID,
		StartedAt:      s.now().Unix(),
	}
	if existing != nil {
		session = *existing
		session.OrganizationID = organizationID
	}
	if err := s.sessions.Start(ctx, session); err != nil {
		return nil, err
	}

	result := &TrackingStarted{
		SampleIntervalSeconds: int(s.sampleInterval / time.Second),
		InTransit:             []string{},
		Failed:                []PackageFailure{},
	}

	location := "Tracking started"
	if fix != nil {
		location = fix.String()
	}
	for _, p := range packages {
		if p.Status != models.StatusPickedUp {
			continue
		}
		_, err := s.UpdateStatus(ctx, StatusUpdate{
			TrackingNumber: p.TrackingNumber,
			DriverID:       driverID,
			Status:         string(models.StatusInTransit),
			Location:       location,
		})
		if err != nil {
			result.Failed = append(result.Failed, PackageFailure{TrackingNumber: p.TrackingNumber, Error: err.Error()})
			continue
		}
		result.InTransit = append(result.InTransit, p.TrackingNumber)
	}

	if fix != nil {
		report, err := s.ReportLocation(ctx, driverID, LocationInput{Latitude: fix.Latitude, Longitude: fix.Longitude})
		if err != nil {
			return nil, err
		}
		result.Location = report
	}

	current, err := s.sessions.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	result.Session = *current

	logger.Get().Info("Tracking started",
		zap.String("driver_id", driverID),
		zap.Int("in_transit", len(result.InTransit)),
		zap.Int("failed", len(result.Failed)))

	evt := events.New(events.TypeTrackingStarted, organizationID)
	evt.DriverID = driverID
	s.publish(ctx, evt)

	return result, nil
}

// StopTracking ends the driver's session. Stopping twice is harmless.
func (s *ShipmentService) StopTracking(ctx context.Context, driverID, organizationID string) error {
	if err := s.sessions.Stop(ctx, driverID); err != nil {
		return err
	}

	logger.Get().Info("Tracking stopped", zap.String("driver_id", driverID))

	evt := events.New(events.TypeTrackingStopped, organizationID)
	evt.DriverID = driverID
	s.publish(ctx, evt)
	return nil
}

// TrackingSession returns the driver's live session
func (s *ShipmentService) TrackingSession(ctx context.Context, driverID string) (*sessions.Session, error) {
	session, err := s.sessions.Get(ctx, driverID)
	if errors.Is(err, sessions.ErrNoSession) {
		return nil, ErrNoActiveSession
	}
	return session, err
}

// ReportLocation stores one sample per active shipment of the driver.
// Writes run concurrently; one failing shipment does not stop the others.
func (s *ShipmentService) ReportLocation(ctx context.Context, driverID string, in LocationInput) (*LocationReport, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	session, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrTrackingRequired
	}

	packages, err := s.store.ListDriverPackages(ctx, driverID)
	if err != nil {
		return nil, err
	}
	shipmentIDs := activeShipments(packages)

	recordedAt := s.now().Unix()
	failures := make([]error, len(shipmentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSampleWriters)
	for i, shipmentID := range shipmentIDs {
		g.Go(func() error {
			failures[i] = s.store.InsertLocationSample(gctx, s.sample(shipmentID, driverID, in, recordedAt))
			return nil
		})
	}
	_ = g.Wait()

	report := &LocationReport{
		RecordedAt: recordedAt,
		Updated:    []string{},
		Failed:     []ShipmentFailure{},
	}
	for i, shipmentID := range shipmentIDs {
		if failures[i] != nil {
			logger.Get().Warn("Failed to record location sample",
				zap.String("shipment_id", shipmentID), zap.Error(failures[i]))
			report.Failed = append(report.Failed, ShipmentFailure{ShipmentID: shipmentID, Error: failures[i].Error()})
			continue
		}
		report.Updated = append(report.Updated, shipmentID)
	}

	if _, err := s.sessions.Touch(ctx, driverID, in.Latitude, in.Longitude, recordedAt); err != nil {
		if errors.Is(err, sessions.ErrNoSession) {
			return nil, ErrTrackingRequired
		}
		return nil, err
	}

	evt := events.New(events.TypeLocationUpdated, session.OrganizationID)
	evt.DriverID = driverID
	evt.Location = in.Point().String()
	evt.Data = map[string]interface{}{
		"latitude":  in.Latitude,
		"longitude": in.Longitude,
		"shipments": report.Updated,
	}
	s.publish(ctx, evt)

	return report, nil
}

// ReportShipmentLocation records a sample against a single shipment assigned to the driver
func (s *ShipmentService) ReportShipmentLocation(ctx context.Context, driverID, shipmentID string, in LocationInput) (*models.LocationSample, error) {
	if err := in.validate(); err != nil {
		return nil, err
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

	recordedAt := s.now().Unix()
	sample := s.sample(shipment.ID, driverID, in, recordedAt)
	if err := s.store.InsertLocationSample(ctx, sample); err != nil {
		return nil, err
	}
	if _, err := s.sessions.Touch(ctx, driverID, in.Latitude, in.Longitude, recordedAt); err != nil && !errors.Is(err, sessions.ErrNoSession) {
		return nil, err
	}

	evt := events.New(events.TypeLocationUpdated, shipment.OrganizationID)
	evt.ShipmentID = shipment.ID
	evt.DriverID = driverID
	evt.Location = in.Point().String()
	s.publish(ctx, evt)

	return sample, nil
}

// LocationSource yields the device's current position
type LocationSource interface {
	CurrentLocation(ctx context.Context) (LocationInput, error)
}

// RunReporter reports the source's position immediately and then every sample interval.
// It returns nil once the driver's session ends, or the context error on cancellation.
func (s *ShipmentService) RunReporter(ctx context.Context, driverID string, source LocationSource) error {
	ticker := time.NewTicker(s.sampleInterval)
	defer ticker.Stop()

	for {
		in, err := source.CurrentLocation(ctx)
		if err != nil {
			logger.Get().Debug("No location to report", zap.String("driver_id", driverID), zap.Error(err))
		} else if _, err := s.ReportLocation(ctx, driverID, in); err != nil {
			if errors.Is(err, ErrTrackingRequired) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Get().Warn("Location report failed", zap.String("driver_id", driverID), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *ShipmentService) sample(shipmentID, driverID string, in LocationInput, at int64) *models.LocationSample {
	return &models.LocationSample{
		ShipmentID: shipmentID,
		DriverID:   driverID,
		Latitude:   geo.Coordinate(in.Latitude),
		Longitude:  geo.Coordinate(in.Longitude),
		Speed:      in.Speed,
		Accuracy:   in.Accuracy,
		RecordedAt: at,
	}
}

// activeShipments returns the sorted ids of shipments with a package on the road
func activeShipments(packages []models.Package) []string {
	seen := map[string]bool{}
	var ids []string
	for _, p := range packages {
		if !p.Status.IsActive() || seen[p.ShipmentID] {
			continue
		}
		seen[p.ShipmentID] = true
		ids = append(ids, p.ShipmentID)
	}
	sort.Strings(ids)
	return ids
}
