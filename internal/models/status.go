package models

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle status of a package
type Status string

const (
	StatusPending           Status = "pending"            // Created, waiting for pickup
	StatusPickedUp          Status = "picked_up"          // Collected by driver at the warehouse
	StatusInTransit         Status = "in_transit"         // Driver tracking session started
	StatusOutForDelivery    Status = "out_for_delivery"   // On the final leg
	StatusDelivered         Status = "delivered"          // Terminal
	StatusDeliveryAttempted Status = "delivery_attempted" // Recipient unavailable, retry pending
	StatusException         Status = "exception"          // Needs manual resolution
	StatusCancelled         Status = "cancelled"          // Terminal
)

// AllStatuses lists every valid status in canonical order
var AllStatuses = []Status{
	StatusPending,
	StatusPickedUp,
	StatusInTransit,
	StatusOutForDelivery,
	StatusDelivered,
	StatusDeliveryAttempted,
	StatusException,
	StatusCancelled,
}

// ActiveStatuses are the statuses in which a package is on the road with a driver
var ActiveStatuses = []Status{
	StatusPickedUp,
	StatusInTransit,
	StatusOutForDelivery,
	StatusDeliveryAttempted,
}

// happy-path rank; zero means the status is a side branch
var statusRank = map[Status]int{
	StatusPending:        1,
	StatusPickedUp:       2,
	StatusInTransit:      3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

var defaultMessages = map[Status]string{
	StatusPending:           "Package is pending pickup",
	StatusPickedUp:          "Package picked up by driver",
	StatusInTransit:         "Package is in transit",
	StatusOutForDelivery:    "Package is out for delivery",
	StatusDelivered:         "Package delivered successfully",
	StatusDeliveryAttempted: "Delivery attempted - recipient unavailable",
	StatusException:         "Exception occurred - requires attention",
	StatusCancelled:         "Package cancelled",
}

// ParseStatus validates a raw status value
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if _, ok := defaultMessages[s]; !ok {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is one of the enumerated statuses
func (s Status) Valid() bool {
	_, ok := defaultMessages[s]
	return ok
}

// IsTerminal returns true for statuses with no outgoing transitions
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// IsActive returns true if the package is currently with a driver
func (s Status) IsActive() bool {
	for _, a := range ActiveStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// DefaultMessage is the history detail written when a status update carries no notes
func (s Status) DefaultMessage() string {
	return defaultMessages[s]
}

// CanTransition reports whether from -> to is an allowed edge.
// Happy-path states only move forward (same state records a checkpoint),
// delivery_attempted may retry toward delivery, exception needs a forced override.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.IsTerminal() || from == StatusException {
		return false
	}

	switch to {
	case StatusDeliveryAttempted, StatusException, StatusCancelled:
		return true
	}

	if from == StatusDeliveryAttempted {
		return to == StatusOutForDelivery || to == StatusDelivered
	}

	fromRank, toRank := statusRank[from], statusRank[to]
	return toRank > 0 && toRank >= fromRank
}
