package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"logisync-backend/internal/events"
	"logisync-backend/internal/logger"
	"logisync-backend/internal/models"
)

const (
	shipmentIDPrefix   = "SHP-"
	shipmentIDLength   = 6
	shipmentIDAttempts = 10
	shipmentIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingPrefix     = "TRK-"
)

// NewShipment is an administrator's request to ship a fulfilled order
type NewShipment struct {
	OrganizationID string
	OrderID        string
	TransportID    *string
	OriginAddress  string
	DepartureDate  *int64
	BudgetID       *string
	WarehouseID    *string
	// Packages defaults to one package addressed from the order when empty
	Packages []NewPackage
}

// NewPackage describes one package line
type NewPackage struct {
	ReceiverName    string   `json:"receiver_name"`
	ReceiverContact string   `json:"receiver_contact"`
	ReceiverAddress string   `json:"receiver_address"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	WeightKg        float64  `json:"weight_kg"`
	LengthCm        float64  `json:"length_cm"`
	WidthCm         float64  `json:"width_cm"`
	HeightCm        float64  `json:"height_cm"`
	Charges         int64    `json:"charges"`
}

// CreatedShipment is returned after the shipment commits
type CreatedShipment struct {
	ShipmentID      string   `json:"shipment_id"`
	TrackingNumbers []string `json:"tracking_numbers"`
	DriverID        *string  `json:"driver_id,omitempty"`
}

// NewTrackingNumber returns TRK- followed by 32 uppercase hex digits of a random UUID
func NewTrackingNumber() string {
	return trackingPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// newShipmentID draws six alphanumerics from the random bytes of a UUID
func newShipmentID() string {
	id := uuid.New()
	var b strings.Builder
	b.WriteString(shipmentIDPrefix)
	for i := 0; i < shipmentIDLength; i++ {
		b.WriteByte(shipmentIDAlphabet[int(id[i])%len(shipmentIDAlphabet)])
	}
	return b.String()
}

func (s *ShipmentService) uniqueShipmentID(ctx context.Context) (string, error) {
	for i := 0; i < shipmentIDAttempts; i++ {
		id := newShipmentID()
		exists, err := s.store.ShipmentExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique shipment id after %d attempts", shipmentIDAttempts)
}

// CreateShipmentFromOrder generates a shipment and its packages from a fulfilled order
func (s *ShipmentService) CreateShipmentFromOrder(ctx context.Context, req NewShipment) (*CreatedShipment, error) {
	fields := fieldErrors{}
	if strings.TrimSpace(req.OrderID) == "" {
		fields.add("order_id", "order id is required")
	}
	for i, p := range req.Packages {
		if p.WeightKg < 0 || p.LengthCm < 0 || p.WidthCm < 0 || p.HeightCm < 0 {
			fields.add(fmt.Sprintf("packages[%d]", i), "dimensions and weight must not be negative")
		}
		if p.Charges < 0 {
			fields.add(fmt.Sprintf("packages[%d].charges", i), "charges must not be negative")
		}
		if (p.Latitude == nil) != (p.Longitude == nil) {
			fields.add(fmt.Sprintf("packages[%d]", i), "latitude and longitude must be sent together")
		}
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	var driverID *string
	if req.TransportID != nil {
		transport, err := s.store.GetTransport(ctx, *req.TransportID)
		if errors.Is(err, ErrNotFound) || (err == nil && transport.OrganizationID != req.OrganizationID) {
			return nil, &ValidationError{Fields: map[string]string{"transport_id": "unknown transport"}}
		}
		if err != nil {
			return nil, err
		}
		driverID = transport.DriverID
	}

	shipmentID, err := s.uniqueShipmentID(ctx)
	if err != nil {
		return nil, err
	}

	created := &CreatedShipment{ShipmentID: shipmentID, DriverID: driverID}
	err = s.store.CreateShipmentFromOrder(ctx, req.OrganizationID, req.OrderID, func(order *models.Order, existing *models.Shipment) (*ShipmentDraft, error) {
		if order.Status != models.OrderStatusFulfilled {
			return nil, fmt.Errorf("%w: status is %s", ErrOrderNotFulfilled, order.Status)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s", ErrShipmentExists, existing.ID)
		}

		orderID := order.ID
		draft := &ShipmentDraft{
			Shipment: models.Shipment{
				ID:             shipmentID,
				OrganizationID: order.OrganizationID,
				TransportID:    req.TransportID,
				DriverID:       driverID,
				OrderID:        &orderID,
				BudgetID:       req.BudgetID,
				WarehouseID:    req.WarehouseID,
				OriginAddress:  strings.TrimSpace(req.OriginAddress),
				DepartureDate:  req.DepartureDate,
			},
		}

		origin := draft.Shipment.OriginAddress
		if origin == "" {
			origin = "Warehouse"
		}
		createdDetails := "Shipment created"

		lines := req.Packages
		if len(lines) == 0 {
			lines = []NewPackage{{
				ReceiverName:    order.CustomerName,
				ReceiverContact: order.CustomerContact,
				ReceiverAddress: order.DeliveryAddress,
				Latitude:        order.Latitude,
				Longitude:       order.Longitude,
				WeightKg:        order.WeightKg,
			}}
		}

		created.TrackingNumbers = make([]string, 0, len(lines))
		for _, line := range lines {
			pkg := models.Package{
				TrackingNumber:  NewTrackingNumber(),
				ShipmentID:      shipmentID,
				OrderID:         &orderID,
				ReceiverName:    line.ReceiverName,
				ReceiverContact: line.ReceiverContact,
				ReceiverAddress: line.ReceiverAddress,
				Latitude:        line.Latitude,
				Longitude:       line.Longitude,
				WeightKg:        line.WeightKg,
				LengthCm:        line.LengthCm,
				WidthCm:         line.WidthCm,
				HeightCm:        line.HeightCm,
				Charges:         line.Charges,
				Status:          models.StatusPending,
			}
			if pkg.ReceiverName == "" {
				pkg.ReceiverName = order.CustomerName
			}
			if pkg.ReceiverAddress == "" {
				pkg.ReceiverAddress = order.DeliveryAddress
			}
			draft.Packages = append(draft.Packages, pkg)
			draft.History = append(draft.History, models.TrackingEntry{
				TrackingNumber: &pkg.TrackingNumber,
				ShipmentID:     &draft.Shipment.ID,
				Location:       origin,
				Status:         models.StatusPending,
				Details:        &createdDetails,
			})
			created.TrackingNumbers = append(created.TrackingNumbers, pkg.TrackingNumber)
		}
		return draft, nil
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Info("Shipment created",
		zap.String("shipment_id", shipmentID),
		zap.String("order_id", req.OrderID),
		zap.Int("packages", len(created.TrackingNumbers)))

	evt := events.New(events.TypeShipmentCreated, req.OrganizationID)
	evt.ShipmentID = shipmentID
	evt.Status = string(models.StatusPending)
	evt.Data = map[string]interface{}{
		"order_id":         req.OrderID,
		"tracking_numbers": created.TrackingNumbers,
	}
	s.publish(ctx, evt)

	return created, nil
}
