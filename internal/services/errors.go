package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNotFoundOrForbidden = errors.New("package not found or not assigned to you")
	ErrTrackingRequired    = errors.New("GPS tracking must be active to update status")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrPendingPackages     = errors.New("all packages must be picked up before tracking starts")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotFulfilled   = errors.New("order is not fulfilled")
	ErrShipmentExists      = errors.New("shipment already exists for this order")
	ErrNoActiveSession     = errors.New("no active tracking session")
	ErrValidation          = errors.New("validation failed")
)

// ValidationError reports bad request fields. Nothing has been mutated when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match a bad status with errors.Is(err, ErrInvalidStatus)
func (e *ValidationError) Unwrap() []error {
	errs := []error{ErrValidation}
	if _, ok := e.Fields["status"]; ok {
		errs = append(errs, ErrInvalidStatus)
	}
	return errs
}

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
