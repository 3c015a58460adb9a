// Package migrations applies the versioned SQL schema with golang-migrate
package migrations

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/socialora/outreach/internal/logger"
)

// Config holds migration configuration
type Config struct {
	MigrationsPath string
	DatabaseURL    string
	RetryAttempts  int
	RetryDelay     time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		MigrationsPath: "file://migrations",
		RetryAttempts:  5,
		RetryDelay:     3 * time.Second,
	}
}

// MigrationService handles database migrations
type MigrationService struct {
	config  Config
	migrate *migrate.Migrate
}

// NewMigrationService connects to the database, retrying while it comes up
func NewMigrationService(config Config) (*MigrationService, error) {
	if config.DatabaseURL == "" {
		return nil, errors.New("database URL cannot be empty")
	}
	if config.MigrationsPath == "" {
		config.MigrationsPath = DefaultConfig().MigrationsPath
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}

	var (
		m   *migrate.Migrate
		err error
	)
	for i := 0; i < config.RetryAttempts; i++ {
		m, err = migrate.New(config.MigrationsPath, config.DatabaseURL)
		if err == nil {
			break
		}
		logger.WarnWithFields("Failed to connect to database", logger.Fields{
			"attempt":  i + 1,
			"attempts": config.RetryAttempts,
			"error":    err.Error(),
		})
		if i < config.RetryAttempts-1 {
			time.Sleep(config.RetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance after %d attempts: %w", config.RetryAttempts, err)
	}

	return &MigrationService{config: config, migrate: m}, nil
}

// Up runs all pending migrations
func (s *MigrationService) Up() error {
	if err := s.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations completed successfully")
	return nil
}

// Down rolls back all migrations
func (s *MigrationService) Down() error {
	if err := s.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	logger.Info("Rollback completed successfully")
	return nil
}

// Steps runs n migrations up or down
func (s *MigrationService) Steps(n int) error {
	if err := s.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run %d migrations: %w", n, err)
	}
	return nil
}

// Version returns the current migration version
func (s *MigrationService) Version() (uint, bool, error) {
	return s.migrate.Version()
}

// Force forces a specific version
func (s *MigrationService) Force(version int) error {
	return s.migrate.Force(version)
}

// Close releases the source and database handles
func (s *MigrationService) Close() error {
	srcErr, dbErr := s.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
