package services

import (
	"context"

	"logisync-backend/internal/models"
)

// DriverShipment groups a driver's packages under their shipment
type DriverShipment struct {
	Shipment models.Shipment  `json:"shipment"`
	Status   models.Status    `json:"status"`
	Packages []models.Package `json:"packages"`
	Load     *Load            `json:"load,omitempty"`
}

// ListDriverShipments returns the driver's shipments that still have open packages
func (s *ShipmentService) ListDriverShipments(ctx context.Context, driverID string) ([]DriverShipment, error) {
	packages, err := s.store.ListDriverPackages(ctx, driverID)
	if err != nil {
		return nil, err
	}

	var order []string
	grouped := map[string][]models.Package{}
	for _, p := range packages {
		if _, ok := grouped[p.ShipmentID]; !ok {
			order = append(order, p.ShipmentID)
		}
		grouped[p.ShipmentID] = append(grouped[p.ShipmentID], p)
	}

	result := []DriverShipment{}
	loads := map[string]*Load{}
	for _, shipmentID := range order {
		pkgs := grouped[shipmentID]
		status := models.DeriveShipmentStatus(pkgs)
		if status.IsTerminal() {
			continue
		}

		shipment, err := s.store.GetShipment(ctx, shipmentID)
		if err != nil {
			return nil, err
		}

		item := DriverShipment{
			Shipment: *shipment,
			Status:   status,
			Packages: pkgs,
		}
		if shipment.TransportID != nil {
			load, ok := loads[*shipment.TransportID]
			if !ok {
				load, err = s.VehicleLoad(ctx, *shipment.TransportID)
				if err != nil {
					return nil, err
				}
				loads[*shipment.TransportID] = load
			}
			item.Load = load
		}
		result = append(result, item)
	}
	return result, nil
}
