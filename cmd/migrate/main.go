package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"logisync-backend/internal/config"
	"logisync-backend/internal/database"
	"logisync-backend/internal/logger"
)

func main() {
	seed := flag.Bool("seed", false, "insert the demo organization after migrating")
	flag.Parse()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.Driver != config.StoreDriverPostgres {
		log.Fatalf("migrate needs STORE_DRIVER=%s, got %q", config.StoreDriverPostgres, cfg.Database.Driver)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	l := logger.Get()

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		l.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		l.Fatal("Migration failed", zap.Error(err))
	}
	l.Info("Migration completed")

	if !*seed {
		return
	}

	demo, err := database.DemoData()
	if err != nil {
		l.Fatal("Failed to build demo data", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.SeedPostgres(ctx, db, demo); err != nil {
		l.Fatal("Seeding failed", zap.Error(err))
	}
}
