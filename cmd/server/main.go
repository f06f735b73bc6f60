package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"logisync-backend/internal/config"
	"logisync-backend/internal/database"
	"logisync-backend/internal/events"
	"logisync-backend/internal/handlers"
	"logisync-backend/internal/logger"
	"logisync-backend/internal/services"
	"logisync-backend/internal/sessions"
	"logisync-backend/internal/websocket"
)

// shipmentStore is what the server needs from a storage backend
type shipmentStore interface {
	services.Store
	handlers.Pinger
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Get().Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.AppConfig) error {
	l := logger.Get()
	l.Info("LogiSync backend starting",
		zap.String("env", cfg.Environment),
		zap.String("store", cfg.Database.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessionStore, err := sessions.NewRedisStore(cfg.Redis.URL, cfg.Tracking.StaleAfter)
	if err != nil {
		return err
	}
	defer sessionStore.Close()
	if err := sessionStore.Ping(ctx); err != nil {
		return err
	}
	l.Info("Redis session store connected")

	hub := websocket.NewHub()
	go hub.Run(ctx)

	sink := events.NewMulti(hub, events.NewRedisSink(sessionStore.Client()))

	if cfg.Events.AMQPURL != "" {
		amqpSink, err := events.DialAMQP(cfg.Events.AMQPURL)
		if err != nil {
			l.Warn("AMQP sink disabled", zap.Error(err))
		} else {
			defer amqpSink.Close()
			sink.Add(amqpSink)
			l.Info("AMQP sink enabled", zap.String("exchange", events.ExchangeName))
		}
	}

	if fcm := openFCM(cfg); fcm != nil {
		sink.Add(fcm)
	}

	var geocoder services.Geocoder
	if cfg.GoogleMapsAPIKey != "" {
		google, err := services.NewGeocodingService(cfg.GoogleMapsAPIKey)
		if err != nil {
			return err
		}
		geocoder = services.NewCachedGeocoder(google, sessionStore.Client())
		l.Info("Reverse geocoding enabled")
	}

	svc := services.NewShipmentService(store, sessionStore, sink, services.Options{
		SampleInterval: cfg.Tracking.SampleInterval,
		Geocoder:       geocoder,
	})

	router := handlers.NewRouter(handlers.RouterDeps{
		Service:   svc,
		Accounts:  store,
		JWTSecret: cfg.JWTSecret,
		WebSocket: websocket.HandleWebSocket(hub, cfg.JWTSecret, svc),
		Health: map[string]handlers.Pinger{
			"store": store,
			"redis": sessionStore,
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Server listening", zap.Int("port", cfg.Port), zap.Int("sinks", sink.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	l.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore connects the configured storage backend and seeds demo data when asked
func openStore(ctx context.Context, cfg *config.AppConfig) (shipmentStore, func(), error) {
	l := logger.Get()

	var demo *database.Demo
	if cfg.SeedDemo {
		var err error
		if demo, err = database.DemoData(); err != nil {
			return nil, nil, fmt.Errorf("failed to build demo data: %w", err)
		}
	}

	if cfg.Database.Driver == config.StoreDriverMemory {
		store := database.NewMemoryStore()
		if demo != nil {
			store.Seed(demo)
		}
		l.Warn("Using in-memory store; data is lost on restart")
		return store, func() {}, nil
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	if demo != nil {
		if err := database.SeedPostgres(ctx, db, demo); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	return database.NewPostgresStore(db), func() { db.Close() }, nil
}

// openFCM returns nil when no credentials are configured or they fail to load
func openFCM(cfg *config.AppConfig) *services.FCMService {
	l := logger.Get()

	var (
		fcm *services.FCMService
		err error
	)
	switch {
	case cfg.Events.FirebaseCredentialsBase64 != "":
		fcm, err = services.NewFCMServiceFromBase64(cfg.Events.FirebaseCredentialsBase64)
	case cfg.Events.FirebaseCredentialsFile != "":
		fcm, err = services.NewFCMService(cfg.Events.FirebaseCredentialsFile)
	default:
		return nil
	}
	if err != nil {
		l.Warn("Push notifications disabled", zap.Error(err))
		return nil
	}
	l.Info("Firebase Cloud Messaging initialized")
	return fcm
}
