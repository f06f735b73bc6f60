package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"logisync-backend/internal/models"
)

// Load is a vehicle's computed fill level. It is never stored.
type Load struct {
	TransportID      string  `json:"transport_id"`
	PackageCount     int     `json:"package_count"`
	CurrentWeightKg  float64 `json:"current_weight_kg"`
	MaxWeightKg      float64 `json:"max_weight_kg"`
	CurrentVolumeM3  float64 `json:"current_volume_m3"`
	MaxVolumeM3      float64 `json:"max_volume_m3"`
	Weight           string  `json:"weight"` // "current/max kg"
	Volume           string  `json:"volume"` // "current/max m³"
	WeightOverloaded bool    `json:"weight_overloaded"`
	VolumeOverloaded bool    `json:"volume_overloaded"`
	Overloaded       bool    `json:"overloaded"`
}

// ComputeLoad sums the packages still on board against the transport's capacity.
// Delivered and cancelled packages do not count.
func ComputeLoad(transport *models.Transport, packages []models.Package) Load {
	weight := decimal.Zero
	volume := decimal.Zero
	count := 0
	for _, p := range packages {
		if p.Status.IsTerminal() {
			continue
		}
		count++
		weight = weight.Add(decimal.NewFromFloat(p.WeightKg))
		volume = volume.Add(decimal.NewFromFloat(p.VolumeM3()))
	}

	maxWeight := decimal.NewFromFloat(transport.CapacityKg)
	maxVolume := decimal.NewFromFloat(transport.VolumeCapacityM3)
	weight = weight.Round(2)
	volume = volume.Round(3)

	load := Load{
		TransportID:      transport.ID,
		PackageCount:     count,
		CurrentWeightKg:  weight.InexactFloat64(),
		MaxWeightKg:      transport.CapacityKg,
		CurrentVolumeM3:  volume.InexactFloat64(),
		MaxVolumeM3:      transport.VolumeCapacityM3,
		Weight:           fmt.Sprintf("%s/%s kg", weight.String(), maxWeight.String()),
		Volume:           fmt.Sprintf("%s/%s m³", volume.String(), maxVolume.String()),
		WeightOverloaded: weight.GreaterThan(maxWeight),
		VolumeOverloaded: volume.GreaterThan(maxVolume),
	}
	load.Overloaded = load.WeightOverloaded || load.VolumeOverloaded
	return load
}

// VehicleLoad computes the load of a transport across every shipment it carries.
// It returns nil when the transport no longer exists.
func (s *ShipmentService) VehicleLoad(ctx context.Context, transportID string) (*Load, error) {
	transport, err := s.store.GetTransport(ctx, transportID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	packages, err := s.store.ListTransportPackages(ctx, transportID)
	if err != nil {
		return nil, err
	}

	load := ComputeLoad(transport, packages)
	return &load, nil
}
