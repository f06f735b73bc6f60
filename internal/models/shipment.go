package models

// Shipment is the header record for a delivery run.
// Its status is never stored; see DeriveShipmentStatus.
type Shipment struct {
	ID             string  `json:"id" db:"id"`
	OrganizationID string  `json:"organization_id" db:"organization_id"`
	TransportID    *string `json:"transport_id,omitempty" db:"transport_id"`
	DriverID       *string `json:"driver_id,omitempty" db:"driver_id"`
	OrderID        *string `json:"order_id,omitempty" db:"order_id"`
	BudgetID       *string `json:"budget_id,omitempty" db:"budget_id"`
	WarehouseID    *string `json:"warehouse_id,omitempty" db:"warehouse_id"`
	OriginAddress  string  `json:"origin_address" db:"origin_address"`
	DepartureDate  *int64  `json:"departure_date,omitempty" db:"departure_date"`
	CreatedAt      int64   `json:"created_at" db:"created_at"`
}

// AssignedTo returns true if the shipment's driver is driverID
func (s *Shipment) AssignedTo(driverID string) bool {
	return s.DriverID != nil && driverID != "" && *s.DriverID == driverID
}

// Package is one deliverable unit within a shipment
type Package struct {
	TrackingNumber  string   `json:"tracking_number" db:"tracking_number"`
	ShipmentID      string   `json:"shipment_id" db:"shipment_id"`
	OrderID         *string  `json:"order_id,omitempty" db:"order_id"`
	ReceiverName    string   `json:"receiver_name" db:"receiver_name"`
	ReceiverContact string   `json:"receiver_contact" db:"receiver_contact"`
	ReceiverAddress string   `json:"receiver_address" db:"receiver_address"`
	Latitude        *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64 `json:"longitude,omitempty" db:"longitude"`
	WeightKg        float64  `json:"weight_kg" db:"weight_kg"`
	LengthCm        float64  `json:"length_cm" db:"length_cm"`
	WidthCm         float64  `json:"width_cm" db:"width_cm"`
	HeightCm        float64  `json:"height_cm" db:"height_cm"`
	Charges         int64    `json:"charges" db:"charges"` // Smallest currency unit
	Status          Status   `json:"status" db:"status"`
	DeletedAt       *int64   `json:"-" db:"deleted_at"`
	CreatedAt       int64    `json:"created_at" db:"created_at"`
	UpdatedAt       int64    `json:"updated_at" db:"updated_at"`
}

// HasLocation returns true if both receiver coordinates are present
func (p *Package) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// VolumeM3 returns the package volume in cubic meters
func (p *Package) VolumeM3() float64 {
	return p.LengthCm * p.WidthCm * p.HeightCm / 1_000_000
}

// TrackingEntry is an immutable audit record of a status change
type TrackingEntry struct {
	ID             int64   `json:"id" db:"id"`
	TrackingNumber *string `json:"tracking_number,omitempty" db:"tracking_number"`
	ShipmentID     *string `json:"shipment_id,omitempty" db:"shipment_id"`
	Timestamp      int64   `json:"timestamp" db:"timestamp"`
	Location       string  `json:"location" db:"location"`
	Status         Status  `json:"status" db:"status"`
	Details        *string `json:"details,omitempty" db:"details"`
}

// DeriveShipmentStatus computes a shipment's aggregate status from its packages.
// Cancelled packages are ignored unless every package is cancelled.
func DeriveShipmentStatus(packages []Package) Status {
	if len(packages) == 0 {
		return StatusPending
	}

	live := 0
	delivered := 0
	lowest := 0
	var attempted, exception bool
	for _, p := range packages {
		switch p.Status {
		case StatusCancelled:
			continue
		case StatusException:
			exception = true
		case StatusDeliveryAttempted:
			attempted = true
		case StatusDelivered:
			delivered++
		}
		live++
		if r := statusRank[p.Status]; r > 0 && (lowest == 0 || r < lowest) {
			lowest = r
		}
	}

	switch {
	case live == 0:
		return StatusCancelled
	case exception:
		return StatusException
	case delivered == live:
		return StatusDelivered
	case attempted:
		return StatusDeliveryAttempted
	}

	for s, r := range statusRank {
		if r == lowest {
			return s
		}
	}
	return StatusPending
}
