package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"logisync-backend/internal/middleware"
	"logisync-backend/internal/services"
	"logisync-backend/pkg/utils"
)

type StatusUpdateRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
}

type OverrideRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Notes    string `json:"notes"`
	Force    bool   `json:"force"`
}

type ExceptionRequest struct {
	Location    string `json:"location"`
	Description string `json:"description"`
}

type CreateShipmentRequest struct {
	TransportID   *string               `json:"transport_id"`
	OriginAddress string                `json:"origin_address"`
	DepartureDate *int64                `json:"departure_date"`
	BudgetID      *string               `json:"budget_id"`
	WarehouseID   *string               `json:"warehouse_id"`
	Packages      []services.NewPackage `json:"packages"`
}

// UpdatePackageStatus lets the assigned driver move a package along its lifecycle
func UpdatePackageStatus(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req StatusUpdateRequest
		if !decodeBody(w, r, &req) {
			return
		}

		result, err := svc.UpdateStatus(r.Context(), services.StatusUpdate{
			TrackingNumber: chi.URLParam(r, "id"),
			DriverID:       user.UserID,
			Status:         req.Status,
			Location:       req.Location,
			Notes:          req.Notes,
		})
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, result)
	}
}

// OverridePackageStatus is the administrator path for correcting a package status
func OverridePackageStatus(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req OverrideRequest
		if !decodeBody(w, r, &req) {
			return
		}

		result, err := svc.OverrideStatus(r.Context(), services.Override{
			OrganizationID: user.OrganizationID,
			ActorID:        user.UserID,
			TrackingNumber: chi.URLParam(r, "trackingNumber"),
			Status:         req.Status,
			Location:       req.Location,
			Notes:          req.Notes,
			Force:          req.Force,
		})
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, result)
	}
}

// ReportShipmentException flags every open package on a shipment as an exception
func ReportShipmentException(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req ExceptionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		report, err := svc.ReportShipmentException(r.Context(), user.UserID,
			chi.URLParam(r, "id"), req.Location, req.Description)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, report)
	}
}

// GetDriverShipments lists the caller's open shipments with their load
func GetDriverShipments(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		shipments, err := svc.ListDriverShipments(r.Context(), user.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		if shipments == nil {
			shipments = []services.DriverShipment{}
		}

		utils.RespondSuccess(w, http.StatusOK, shipments)
	}
}

// GetShipment returns the administrator view of one shipment
func GetShipment(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		detail, err := svc.GetShipmentDetail(r.Context(), user.OrganizationID, chi.URLParam(r, "shipmentId"))
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, detail)
	}
}

// CreateShipmentFromOrder ships a fulfilled order
func CreateShipmentFromOrder(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req CreateShipmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		created, err := svc.CreateShipmentFromOrder(r.Context(), services.NewShipment{
			OrganizationID: user.OrganizationID,
			OrderID:        strings.TrimSpace(chi.URLParam(r, "orderId")),
			TransportID:    req.TransportID,
			OriginAddress:  req.OriginAddress,
			DepartureDate:  req.DepartureDate,
			BudgetID:       req.BudgetID,
			WarehouseID:    req.WarehouseID,
			Packages:       req.Packages,
		})
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusCreated, created)
	}
}
