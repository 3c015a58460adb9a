package test

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/socialora/outreach/internal/db"
	"github.com/socialora/outreach/internal/db/repos"
)

// NewFileBasedTestDB creates a new file-based SQLite database for testing.
// It returns the database connection and the path to the temporary directory.
func NewFileBasedTestDB() (*gorm.DB, string, error) {
	tmpDir, err := os.MkdirTemp("", "outreach_test")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temporary directory: %w", err)
	}
	dbPath := filepath.Join(tmpDir, "outreach_test.db")
	database, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		// Try to clean up the temporary directory, but don't fail if cleanup fails
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			fmt.Printf("Warning: failed to remove temporary directory after database error: %v\n", rmErr)
		}
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get sql database: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return database, tmpDir, nil
}

// CleanupTestDB closes the database connection and removes the temporary directory.
func CleanupTestDB(database *gorm.DB, tmpDir string) {
	sqlDB, err := database.DB()
	if err == nil && sqlDB != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			fmt.Printf("Error closing database connection: %v\n", closeErr)
		}
	}
	if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
		fmt.Printf("Error removing temporary directory: %v\n", rmErr)
	}
}

// SetupTestDB configures the test suite to use the provided database connection.
// If nil is provided, a new file-based database will be created.
func SetupTestDB(suite *Suite, database *gorm.DB) {
	if database != nil {
		suite.DB = database
	} else {
		dbConn, tmpDir, err := NewFileBasedTestDB()
		suite.Require().NoError(err, "Failed to create file-based database")
		suite.DB = dbConn

		suite.Require().NoError(db.Migrate(suite.DB), "Failed to run database migrations")

		oldCleanup := suite.cleanup
		suite.cleanup = func() {
			if oldCleanup != nil {
				oldCleanup()
			}
			CleanupTestDB(suite.DB, tmpDir)
		}
	}

	suite.JobRepo = repos.NewJobRepository(suite.DB)
	suite.CampaignRepo = repos.NewCampaignRepository(suite.DB)
	suite.AccountRepo = repos.NewAccountRepository(suite.DB)
	suite.LeadRepo = repos.NewLeadRepository(suite.DB)
}
