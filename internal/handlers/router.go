package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"logisync-backend/internal/middleware"
	"logisync-backend/internal/models"
	"logisync-backend/internal/services"
)

// Accounts is the user lookup the auth endpoints need
type Accounts interface {
	UserFinder
	UserLookup
}

// RouterDeps is everything the HTTP surface is wired to
type RouterDeps struct {
	Service   *services.ShipmentService
	Accounts  Accounts
	JWTSecret string
	WebSocket http.HandlerFunc
	Health    map[string]Pinger
}

// NewRouter builds the full API
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", Health(deps.Health))
	if deps.WebSocket != nil {
		r.Get("/ws", deps.WebSocket)
	}

	svc := deps.Service
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", Login(deps.Accounts, deps.JWTSecret))
		r.Get("/track/{trackingNumber}", TrackPackage(svc))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.JWTSecret))
			r.Get("/me", GetCurrentUser(deps.Accounts))
		})

		// Driver routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.JWTSecret))
			r.Use(middleware.RequireRole(models.RoleDriver))

			r.Get("/driver/shipments", GetDriverShipments(svc))
			r.Patch("/driver/shipments/{id}/status", UpdatePackageStatus(svc))
			r.Post("/driver/shipments/{id}/exception", ReportShipmentException(svc))
			r.Get("/driver/route", GetDriverRoute(svc))

			r.Get("/driver/tracking", GetTrackingSession(svc))
			r.Post("/driver/tracking/start", StartTracking(svc))
			r.Post("/driver/tracking/stop", StopTracking(svc))
			r.Post("/driver/location", ReportDriverLocation(svc))
			r.Post("/shipments/{shipmentId}/location", ReportShipmentLocation(svc))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.JWTSecret))
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Post("/orders/{orderId}/shipment", CreateShipmentFromOrder(svc))
			r.Get("/shipments/{shipmentId}", GetShipment(svc))
			r.Patch("/manager/packages/{trackingNumber}/status", OverridePackageStatus(svc))
		})
	})

	return r
}
