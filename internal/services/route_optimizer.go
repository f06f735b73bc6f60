package services

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"logisync-backend/internal/geo"
	"logisync-backend/internal/logger"
	"logisync-backend/internal/models"
)

// MinutesPerKm is the flat urban travel estimate used for stop ETAs
const MinutesPerKm = 3

// RouteStop is one delivery in an optimized route
type RouteStop struct {
	StopNumber       int           `json:"stop_number"`
	TrackingNumber   string        `json:"tracking_number"`
	ShipmentID       string        `json:"shipment_id"`
	ReceiverName     string        `json:"receiver_name"`
	ReceiverAddress  string        `json:"receiver_address"`
	Latitude         float64       `json:"latitude"`
	Longitude        float64       `json:"longitude"`
	Status           models.Status `json:"status"`
	DistanceKm       float64       `json:"distance_km"`
	EstimatedMinutes float64       `json:"estimated_minutes"`
}

// UnroutablePackage is a package the optimizer had to leave out
type UnroutablePackage struct {
	TrackingNumber  string `json:"tracking_number"`
	ReceiverAddress string `json:"receiver_address"`
	Reason          string `json:"reason"`
}

// RoutePlan is an ordered delivery sequence
type RoutePlan struct {
	Start                 geo.Point           `json:"start"`
	Stops                 []RouteStop         `json:"stops"`
	Unroutable            []UnroutablePackage `json:"unroutable"`
	TotalDistanceKm       float64             `json:"total_distance_km"`
	TotalEstimatedMinutes float64             `json:"total_estimated_minutes"`
	CurrentStop           int                 `json:"current_stop"`
}

// RouteOptimizer orders deliveries with a greedy nearest-neighbour heuristic
type RouteOptimizer struct{}

// NewRouteOptimizer creates a new route optimizer
func NewRouteOptimizer() *RouteOptimizer {
	return &RouteOptimizer{}
}

// OptimizeRoute always visits the closest remaining package next.
// Packages without coordinates are reported as unroutable. Ties go to the earlier package.
func (ro *RouteOptimizer) OptimizeRoute(start geo.Point, packages []models.Package) RoutePlan {
	plan := RoutePlan{
		Start:      start,
		Stops:      []RouteStop{},
		Unroutable: []UnroutablePackage{},
	}

	remaining := make([]models.Package, 0, len(packages))
	for _, p := range packages {
		if !p.HasLocation() {
			plan.Unroutable = append(plan.Unroutable, UnroutablePackage{
				TrackingNumber:  p.TrackingNumber,
				ReceiverAddress: p.ReceiverAddress,
				Reason:          "no delivery location",
			})
			continue
		}
		remaining = append(remaining, p)
	}

	current := start
	total := 0.0
	for len(remaining) > 0 {
		bestIdx := 0
		bestDistance := math.MaxFloat64

		for i, p := range remaining {
			distance := geo.HaversineKm(current, geo.Point{Latitude: *p.Latitude, Longitude: *p.Longitude})
			if distance < bestDistance {
				bestDistance = distance
				bestIdx = i
			}
		}

		best := remaining[bestIdx]
		total += bestDistance
		plan.Stops = append(plan.Stops, RouteStop{
			StopNumber:       len(plan.Stops) + 1,
			TrackingNumber:   best.TrackingNumber,
			ShipmentID:       best.ShipmentID,
			ReceiverName:     best.ReceiverName,
			ReceiverAddress:  best.ReceiverAddress,
			Latitude:         *best.Latitude,
			Longitude:        *best.Longitude,
			Status:           best.Status,
			DistanceKm:       geo.Round(bestDistance, 2),
			EstimatedMinutes: geo.Round(bestDistance*MinutesPerKm, 1),
		})

		current = geo.Point{Latitude: *best.Latitude, Longitude: *best.Longitude}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	plan.TotalDistanceKm = geo.Round(total, 2)
	plan.TotalEstimatedMinutes = geo.Round(total*MinutesPerKm, 1)

	logger.Get().Debug("Route optimized",
		zap.Int("stops", len(plan.Stops)),
		zap.Int("unroutable", len(plan.Unroutable)),
		zap.Float64("total_distance_km", plan.TotalDistanceKm))

	return plan
}

// DriverRoute plans the driver's remaining deliveries from start, or from the
// latest GPS fix when start is nil. The plan is recomputed on every call.
func (s *ShipmentService) DriverRoute(ctx context.Context, driverID string, start *geo.Point) (*RoutePlan, error) {
	session, err := s.activeSession(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if start == nil && session != nil && session.LastLatitude != nil && session.LastLongitude != nil {
		start = &geo.Point{Latitude: *session.LastLatitude, Longitude: *session.LastLongitude}
	}
	if start == nil {
		sample, err := s.store.LatestDriverLocation(ctx, driverID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if sample != nil {
			lat, lng := sample.LatLng()
			start = &geo.Point{Latitude: lat, Longitude: lng}
		}
	}
	if start == nil {
		return nil, &ValidationError{Fields: map[string]string{"location": "current position is unknown; send lat and lng"}}
	}
	if !start.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"location": "coordinates out of range"}}
	}

	packages, err := s.store.ListDriverPackages(ctx, driverID)
	if err != nil {
		return nil, err
	}
	active := packages[:0:0]
	for _, p := range packages {
		if p.Status.IsActive() {
			active = append(active, p)
		}
	}

	plan := s.optimizer.OptimizeRoute(*start, active)
	if session != nil {
		plan.CurrentStop = session.CurrentStop
	}
	return &plan, nil
}
