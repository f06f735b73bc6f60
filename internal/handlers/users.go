package handlers

import (
	"context"
	"net/http"

	"logisync-backend/internal/middleware"
	"logisync-backend/internal/models"
	"logisync-backend/pkg/utils"
)

// UserLookup loads an account by id
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// GetCurrentUser returns the authenticated caller's profile
func GetCurrentUser(users UserLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := users.GetUser(r.Context(), claims.UserID)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		utils.RespondSuccess(w, http.StatusOK, user.ToUserResponse())
	}
}
