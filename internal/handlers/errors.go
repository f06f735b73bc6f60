package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"logisync-backend/internal/logger"
	"logisync-backend/internal/services"
	"logisync-backend/pkg/utils"
)

// respondServiceError maps service errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.RespondValidation(w, verr.Fields)

	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrNotFoundOrForbidden),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrNoActiveSession):
		utils.RespondError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, services.ErrShipmentExists):
		utils.RespondError(w, http.StatusConflict, err.Error())

	case errors.Is(err, services.ErrTrackingRequired),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrPendingPackages),
		errors.Is(err, services.ErrOrderNotFulfilled):
		utils.RespondError(w, http.StatusUnprocessableEntity, err.Error())

	default:
		logger.Get().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody reads a JSON body; an empty body leaves v untouched
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
