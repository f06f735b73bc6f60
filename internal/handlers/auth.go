package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"logisync-backend/internal/logger"
	"logisync-backend/internal/middleware"
	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
	"logisync-backend/pkg/utils"
)

// UserFinder looks up login accounts
type UserFinder interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK    bool                 `json:"ok"`
	Token string               `json:"token,omitempty"`
	User  *models.UserResponse `json:"user,omitempty"`
}

// Login exchanges email and password for a signed token
func Login(users UserFinder, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))

		l := logger.Get()
		user, err := users.GetUserByEmail(r.Context(), email)
		if errors.Is(err, services.ErrNotFound) {
			l.Info("Login failed: unknown email", zap.String("email", email))
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			l.Info("Login failed: bad password", zap.String("email", email))
			utils.RespondJSON(w, http.StatusUnauthorized, LoginResponse{OK: false})
			return
		}

		token, err := middleware.IssueToken(jwtSecret, middleware.UserClaims{
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Email:          user.Email,
			Role:           user.Role,
		}, time.Now())
		if err != nil {
			respondServiceError(w, r, err)
			return
		}

		userResponse := user.ToUserResponse()
		l.Info("Login successful", zap.String("user_id", user.ID), zap.String("role", user.Role))

		utils.RespondJSON(w, http.StatusOK, LoginResponse{
			OK:    true,
			Token: token,
			User:  &userResponse,
		})
	}
}
