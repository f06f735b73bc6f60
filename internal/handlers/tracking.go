package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"logisync-backend/internal/geo"
	"logisync-backend/internal/middleware"
	"logisync-backend/internal/services"
	"logisync-backend/pkg/utils"
)

type StartTrackingRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// fix returns the optional starting GPS fix
func (req StartTrackingRequest) fix() (*geo.Point, bool) {
	if req.Latitude == nil && req.Longitude == nil {
		return nil, true
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, false
	}
	return &geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}, true
}

// TrackPackage is the public tracking lookup; no authentication
func TrackPackage(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.Track(r.Context(), chi.URLParam(r, "trackingNumber"))
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		utils.RespondSuccess(w, http.StatusOK, view)
	}
}

// StartTracking opens the caller's GPS session
func StartTracking(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req StartTrackingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		fix, ok := req.fix()
		if !ok {
			utils.RespondValidation(w, map[string]string{"location": "latitude and longitude must be sent together"})
			return
		}

		started, err := svc.StartTracking(r.Context(), user.UserID, user.OrganizationID, fix)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, started)
	}
}

// StopTracking ends the caller's GPS session
func StopTracking(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := svc.StopTracking(r.Context(), user.UserID, user.OrganizationID); err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, map[string]bool{"tracking": false})
	}
}

// GetTrackingSession returns the caller's live session
func GetTrackingSession(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		session, err := svc.TrackingSession(r.Context(), user.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, session)
	}
}

// ReportDriverLocation fans one GPS reading out to every active shipment
func ReportDriverLocation(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req services.LocationInput
		if !decodeBody(w, r, &req) {
			return
		}

		report, err := svc.ReportLocation(r.Context(), user.UserID, req)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, report)
	}
}

// ReportShipmentLocation records a GPS reading against one shipment
func ReportShipmentLocation(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req services.LocationInput
		if !decodeBody(w, r, &req) {
			return
		}

		sample, err := svc.ReportShipmentLocation(r.Context(), user.UserID, chi.URLParam(r, "shipmentId"), req)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusCreated, sample)
	}
}
