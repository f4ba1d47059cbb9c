package main

import (
	"log"
	"log/slog"

	"metrics-relay/internal/config"
	"metrics-relay/internal/database"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	dsn := cfg.Database.DSN()
	if dsn == "" {
		log.Fatal("POSTGRES_HOST is not set")
	}

	slog.Info("Starting database migration...")

	// Connecting runs the schema migration
	db, err := database.NewPostgresConnection(dsn)
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database instance:", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	slog.Info("Database migration completed successfully!")
}
