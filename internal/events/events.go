package events

import (
	"context"
	"time"

	"go.uber.org/multierr"
)

// Type names a lifecycle event
type Type string

const (
	TypeStatusUpdated   Type = "status.updated"
	TypeShipmentCreated Type = "shipment.created"
	TypeLocationUpdated Type = "location.updated"
	TypeTrackingStarted Type = "tracking.started"
	TypeTrackingStopped Type = "tracking.stopped"
)

// Event is published to an organization-scoped channel
type Event struct {
	Type           Type                   `json:"type"`
	OrganizationID string                 `json:"organization_id"`
	ShipmentID     string                 `json:"shipment_id,omitempty"`
	TrackingNumber string                 `json:"tracking_number,omitempty"`
	DriverID       string                 `json:"driver_id,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Location       string                 `json:"location,omitempty"`
	OccurredAt     int64                  `json:"occurred_at"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// New stamps an event with the current time
func New(t Type, organizationID string) Event {
	return Event{
		Type:           t,
		OrganizationID: organizationID,
		OccurredAt:     time.Now().Unix(),
	}
}

// Sink delivers events to one transport
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Publish(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Multi fans an event out to every sink. A failing sink never stops the others;
// all failures come back combined.
type Multi struct {
	sinks []Sink
}

// NewMulti builds a dispatcher, skipping nil sinks
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add registers another sink
func (m *Multi) Add(s Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of registered sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

func (m *Multi) Publish(ctx context.Context, evt Event) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Publish(ctx, evt))
	}
	return err
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
