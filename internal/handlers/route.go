package handlers

import (
	"net/http"
	"strconv"

	"logisync-backend/internal/geo"
	"logisync-backend/internal/middleware"
	"logisync-backend/internal/services"
	"logisync-backend/pkg/utils"
)

// GetDriverRoute returns the nearest-neighbour stop order for the caller's active packages.
// The start point comes from ?lat=&lng= or the driver's last known fix.
func GetDriverRoute(svc *services.ShipmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var start *geo.Point
		q := r.URL.Query()
		if latRaw, lngRaw := q.Get("lat"), q.Get("lng"); latRaw != "" || lngRaw != "" {
			lat, latErr := strconv.ParseFloat(latRaw, 64)
			lng, lngErr := strconv.ParseFloat(lngRaw, 64)
			if latErr != nil || lngErr != nil {
				utils.RespondValidation(w, map[string]string{"location": "lat and lng must both be numbers"})
				return
			}
			start = &geo.Point{Latitude: lat, Longitude: lng}
		}

		plan, err := svc.DriverRoute(r.Context(), user.UserID, start)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, plan)
	}
}
