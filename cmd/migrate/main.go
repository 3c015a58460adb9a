// This file is used to run database migrations
// How to run:
// go run cmd/migrate/main.go              # Run all pending migrations
// go run cmd/migrate/main.go -down        # Rollback all migrations
// go run cmd/migrate/main.go -steps 1     # Run one migration
// go run cmd/migrate/main.go -steps -1    # Rollback one migration
// go run cmd/migrate/main.go -force 1     # Force version 1
package main

import (
	"flag"
	"os"
	"time"

	"github.com/socialora/outreach/config"
	"github.com/socialora/outreach/internal/db/migrations"
	"github.com/socialora/outreach/internal/logger"
)

func main() {
	var (
		dbURLFlag = flag.String("db", "", "Database URL (optional, defaults to env vars)")
		migPath   = flag.String("path", "file://migrations", "Path to migration files")
		down      = flag.Bool("down", false, "Roll back migrations")
		steps     = flag.Int("steps", 0, "Number of migrations to apply (up or down)")
		force     = flag.Int("force", -1, "Force a specific version")
		retries   = flag.Int("retries", 5, "Number of connection retries")
		retryWait = flag.Duration("retry-wait", 3*time.Second, "Wait time between retries")
	)
	flag.Parse()

	logger.InitializeAndConfigure(config.GetEnv("LOG_LEVEL", "info"))

	dbURL := *dbURLFlag
	if dbURL == "" {
		database, err := config.LoadDatabase()
		if err != nil {
			logger.Fatalf("Failed to load database configuration: %v", err)
		}
		dbURL = database.URL()
	}

	service, err := migrations.NewMigrationService(migrations.Config{
		MigrationsPath: *migPath,
		DatabaseURL:    dbURL,
		RetryAttempts:  *retries,
		RetryDelay:     *retryWait,
	})
	if err != nil {
		logger.Fatalf("Failed to create migration service: %v", err)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warnf("Failed to close migration service: %v", err)
		}
	}()

	// Handle force version
	if *force >= 0 {
		if err := service.Force(*force); err != nil {
			logger.Fatalf("Failed to force version %d: %v", *force, err)
		}
		logger.Infof("Successfully forced version to %d", *force)
		return
	}

	// Handle steps
	if *steps != 0 {
		if err := service.Steps(*steps); err != nil {
			logger.Fatalf("Failed to apply %d steps: %v", *steps, err)
		}
		logger.Infof("Successfully applied %d steps", *steps)
		return
	}

	// Handle up/down
	if *down {
		err = service.Down()
	} else {
		err = service.Up()
	}
	if err != nil {
		logger.Errorf("Migration failed: %v", err)
		os.Exit(1)
	}

	version, dirty, err := service.Version()
	if err != nil {
		logger.Warnf("Could not get final version: %v", err)
		return
	}
	logger.Infof("Current migration version: %d (dirty: %v)", version, dirty)
}
