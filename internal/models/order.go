package models

// OrderStatus represents the fulfillment state of a customer order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusFulfilled  OrderStatus = "fulfilled"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is the upstream record a shipment is generated from
type Order struct {
	ID              string      `json:"id" db:"id"`
	OrganizationID  string      `json:"organization_id" db:"organization_id"`
	Status          OrderStatus `json:"status" db:"status"`
	CustomerName    string      `json:"customer_name" db:"customer_name"`
	CustomerContact string      `json:"customer_contact" db:"customer_contact"`
	DeliveryAddress string      `json:"delivery_address" db:"delivery_address"`
	Latitude        *float64    `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64    `json:"longitude,omitempty" db:"longitude"`
	WeightKg        float64     `json:"weight_kg" db:"weight_kg"`
	CreatedAt       int64       `json:"created_at" db:"created_at"`
}

// Transport is a vehicle with a declared load capacity
type Transport struct {
	ID               string  `json:"id" db:"id"`
	OrganizationID   string  `json:"organization_id" db:"organization_id"`
	PlateNumber      string  `json:"plate_number" db:"plate_number"`
	VehicleType      string  `json:"vehicle_type" db:"vehicle_type"`
	CapacityKg       float64 `json:"capacity_kg" db:"capacity_kg"`
	VolumeCapacityM3 float64 `json:"volume_capacity_m3" db:"volume_capacity_m3"`
	DriverID         *string `json:"driver_id,omitempty" db:"driver_id"`
}
