package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"logisync-backend/internal/events"
	"logisync-backend/internal/logger"
	"logisync-backend/internal/models"
	"logisync-backend/internal/sessions"
)

// DefaultSampleInterval is how often a tracking driver reports GPS
const DefaultSampleInterval = 30 * time.Second

// Options tunes a ShipmentService
type Options struct {
	SampleInterval time.Duration
	// Geocoder, when set, turns autofilled GPS locations into addresses
	Geocoder Geocoder
}

// ShipmentService owns every package status mutation and the tracking-session workflow
type ShipmentService struct {
	store          Store
	sessions       SessionStore
	events         events.Sink
	optimizer      *RouteOptimizer
	geocoder       Geocoder
	sampleInterval time.Duration
	now            func() time.Time
}

// NewShipmentService creates a new shipment service
func NewShipmentService(store Store, sessionStore SessionStore, sink events.Sink, opts Options) *ShipmentService {
	if sink == nil {
		sink = events.Nop{}
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = DefaultSampleInterval
	}

	return &ShipmentService{
		store:          store,
		sessions:       sessionStore,
		events:         sink,
		optimizer:      NewRouteOptimizer(),
		geocoder:       opts.Geocoder,
		sampleInterval: opts.SampleInterval,
		now:            time.Now,
	}
}

// SampleInterval returns the GPS reporting interval handed to drivers
func (s *ShipmentService) SampleInterval() time.Duration {
	return s.sampleInterval
}

// StatusUpdate is a driver's request to move one package
type StatusUpdate struct {
	TrackingNumber string
	DriverID       string
	Status         string
	Location       string
	Notes          string
}

// Override is an administrator's status change. Force skips the transition table.
type Override struct {
	OrganizationID string
	ActorID        string
	TrackingNumber string
	Status         string
	Location       string
	Notes          string
	Force          bool
}

// StatusResult is returned after a status change commits
type StatusResult struct {
	TrackingNumber string               `json:"tracking_number"`
	ShipmentID     string               `json:"shipment_id"`
	PreviousStatus models.Status        `json:"previous_status"`
	Status         models.Status        `json:"status"`
	Entry          models.TrackingEntry `json:"entry"`
	CurrentStop    *int                 `json:"current_stop,omitempty"`
}

// UpdateStatus moves a package along the delivery lifecycle on behalf of its assigned driver
func (s *ShipmentService) UpdateStatus(ctx context.Context, req StatusUpdate) (*StatusResult, error) {
	fields := fieldErrors{}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		fields.add("status", "must be one of pending, picked_up, in_transit, out_for_delivery, delivered, delivery_attempted, exception, cancelled")
	}
	trackingNumber := strings.TrimSpace(req.TrackingNumber)
	if trackingNumber == "" {
		fields.add("tracking_number", "tracking number is required")
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	pkg, shipment, err := s.store.GetPackage(ctx, trackingNumber)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	if !shipment.AssignedTo(req.DriverID) {
		return nil, ErrNotFoundOrForbidden
	}

	session, err := s.activeSession(ctx, req.DriverID)
	if err != nil {
		return nil, err
	}
	if session == nil && status != models.StatusPickedUp {
		return nil, ErrTrackingRequired
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = s.lastFix(ctx, session)
	}
	if location == "" {
		return nil, &ValidationError{Fields: map[string]string{"location": "location is required when no GPS fix is available"}}
	}

	result, err := s.apply(ctx, shipment, pkg.TrackingNumber, status, location, req.Notes, false)
	if err != nil {
		return nil, err
	}

	if status == models.StatusDelivered && session != nil {
		updated, err := s.sessions.AdvanceStop(ctx, req.DriverID)
		switch {
		case err == nil:
			result.CurrentStop = &updated.CurrentStop
		case errors.Is(err, sessions.ErrNoSession):
		default:
			logger.Get().Warn("Failed to advance current stop",
				zap.String("driver_id", req.DriverID), zap.Error(err))
		}
	}

	s.publishStatus(ctx, shipment, result, req.DriverID)
	return result, nil
}

// OverrideStatus lets an administrator correct a package within their organization.
// No tracking session is needed.
func (s *ShipmentService) OverrideStatus(ctx context.Context, req Override) (*StatusResult, error) {
	fields := fieldErrors{}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		fields.add("status", "must be one of pending, picked_up, in_transit, out_for_delivery, delivered, delivery_attempted, exception, cancelled")
	}
	location := strings.TrimSpace(req.Location)
	if location == "" {
		fields.add("location", "location is required")
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	pkg, shipment, err := s.store.GetPackage(ctx, strings.TrimSpace(req.TrackingNumber))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, err
	}
	if shipment.OrganizationID != req.OrganizationID {
		return nil, ErrNotFoundOrForbidden
	}

	result, err := s.apply(ctx, shipment, pkg.TrackingNumber, status, location, req.Notes, req.Force)
	if err != nil {
		return nil, err
	}

	logger.Get().Info("Package status overridden",
		zap.String("tracking_number", pkg.TrackingNumber),
		zap.String("actor_id", req.ActorID),
		zap.String("from", string(result.PreviousStatus)),
		zap.String("to", string(result.Status)),
		zap.Bool("force", req.Force))

	s.publishStatus(ctx, shipment, result, "")
	return result, nil
}

// apply runs the transition check and the write under the package row lock
func (s *ShipmentService) apply(ctx context.Context, shipment *models.Shipment, trackingNumber string, status models.Status, location, notes string, force bool) (*StatusResult, error) {
	var previous models.Status
	entry, err := s.store.ApplyStatusChange(ctx, trackingNumber, func(current *models.Package) (*models.TrackingEntry, error) {
		previous = current.Status
		if !force && !models.CanTransition(current.Status, status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
		}

		details := strings.TrimSpace(notes)
		if details == "" {
			details = status.DefaultMessage()
		}
		return &models.TrackingEntry{
			Status:   status,
			Location: location,
			Details:  &details,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &StatusResult{
		TrackingNumber: trackingNumber,
		ShipmentID:     shipment.ID,
		PreviousStatus: previous,
		Status:         status,
		Entry:          *entry,
	}, nil
}

// activeSession returns the driver's live session, or nil when there is none
func (s *ShipmentService) activeSession(ctx context.Context, driverID string) (*sessions.Session, error) {
	session, err := s.sessions.Get(ctx, driverID)
	if errors.Is(err, sessions.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tracking session: %w", err)
	}
	return session, nil
}

func (s *ShipmentService) lastFix(ctx context.Context, session *sessions.Session) string {
	if session == nil || session.LastLatitude == nil || session.LastLongitude == nil {
		return ""
	}
	return s.describeFix(ctx, *session.LastLatitude, *session.LastLongitude)
}

func (s *ShipmentService) publishStatus(ctx context.Context, shipment *models.Shipment, result *StatusResult, driverID string) {
	evt := events.New(events.TypeStatusUpdated, shipment.OrganizationID)
	evt.ShipmentID = shipment.ID
	evt.TrackingNumber = result.TrackingNumber
	evt.DriverID = driverID
	evt.Status = string(result.Status)
	evt.Location = result.Entry.Location
	evt.Data = map[string]interface{}{
		"previous_status": string(result.PreviousStatus),
	}
	s.publish(ctx, evt)
}

// publish never fails the caller; the state change has already committed
func (s *ShipmentService) publish(ctx context.Context, evt events.Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		logger.Get().Warn("Failed to dispatch event",
			zap.String("type", string(evt.Type)),
			zap.String("organization_id", evt.OrganizationID),
			zap.Error(err))
	}
}
