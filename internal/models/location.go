package models

import "github.com/shopspring/decimal"

// LocationSample is an advisory GPS reading recorded against a shipment
type LocationSample struct {
	ID         int64           `json:"id" db:"id"`
	ShipmentID string          `json:"shipment_id" db:"shipment_id"`
	DriverID   string          `json:"driver_id" db:"driver_id"`
	Latitude   decimal.Decimal `json:"latitude" db:"latitude"`
	Longitude  decimal.Decimal `json:"longitude" db:"longitude"`
	Speed      *float64        `json:"speed,omitempty" db:"speed"`       // Speed in m/s
	Accuracy   *float64        `json:"accuracy,omitempty" db:"accuracy"` // GPS accuracy in meters
	RecordedAt int64           `json:"recorded_at" db:"recorded_at"`
}

// LatLng returns the sample coordinates as floats
func (l *LocationSample) LatLng() (float64, float64) {
	return l.Latitude.InexactFloat64(), l.Longitude.InexactFloat64()
}
