package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/socialora/outreach/internal/db"
	"github.com/socialora/outreach/internal/db/models"
)

const testWorkspace = "ws-test"

// DBRepositoryTestSuite provides a base test suite for repository tests
type DBRepositoryTestSuite struct {
	suite.Suite
	db           *gorm.DB
	ctx          context.Context
	jobRepo      *JobRepository
	campaignRepo *CampaignRepository
	accountRepo  *AccountRepository
	leadRepo     *LeadRepository
}

// OpenTestDB opens a fresh in-memory database with the full schema
func OpenTestDB(t *testing.T) *gorm.DB {
	// a unique name keeps parallel tests apart while sharing the cache between pool connections
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to create in-memory database")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb), "Failed to run database migrations")
	return gdb
}

func (s *DBRepositoryTestSuite) SetupTest() {
	s.db = OpenTestDB(s.T())
	s.jobRepo = NewJobRepository(s.db)
	s.campaignRepo = NewCampaignRepository(s.db)
	s.accountRepo = NewAccountRepository(s.db)
	s.leadRepo = NewLeadRepository(s.db)
	s.ctx = context.Background()
}

func (s *DBRepositoryTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

// Helper methods for creating test data

func (s *DBRepositoryTestSuite) createDMJob(scheduledAt time.Time) *models.Job {
	payload, err := json.Marshal(models.DMPayload{RecipientUsername: "ali", Message: "Merhaba"})
	s.Require().NoError(err)
	job := &models.Job{
		WorkspaceID: testWorkspace,
		JobType:     models.JobTypeDM,
		Payload:     payload,
		ScheduledAt: scheduledAt,
	}
	s.Require().NoError(s.jobRepo.Create(s.ctx, job))
	return job
}

func (s *DBRepositoryTestSuite) createCampaign(status models.CampaignStatus) *models.Campaign {
	campaign := &models.Campaign{
		WorkspaceID:    testWorkspace,
		Name:           "spring",
		Status:         status,
		SendStartTime:  "09:00",
		SendEndTime:    "17:00",
		Timezone:       "UTC",
		MessagesPerDay: 10,
		Steps: []models.CampaignStep{
			{StepOrder: 0, MessageTemplate: "Merhaba {{first_name}}"},
			{StepOrder: 1, DelayMinutes: 60, MessageTemplate: "Tekrar merhaba"},
		},
	}
	s.Require().NoError(s.campaignRepo.Create(s.ctx, campaign))
	return campaign
}

func (s *DBRepositoryTestSuite) createAccount(limit int) *models.InstagramAccount {
	account := &models.InstagramAccount{
		WorkspaceID: testWorkspace,
		Username:    "sender",
		IsActive:    true,
		DailyLimit:  limit,
	}
	s.Require().NoError(s.accountRepo.Create(s.ctx, account))
	return account
}

func strPtr(s string) *string { return &s }
