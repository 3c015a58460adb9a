package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/socialora/outreach/internal/db"
	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/geo"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/intent"
)

const testWorkspace = "ws-test"

// TestSetup wires every service against an in-memory database and a mock Instagram client
type TestSetup struct {
	DB           *gorm.DB
	JobRepo      *repos.JobRepository
	CampaignRepo *repos.CampaignRepository
	AccountRepo  *repos.AccountRepository
	LeadRepo     *repos.LeadRepository
	IG           *instagram.MockClient

	Mining   *Mining
	Campaign *Campaign
	Job      *Job
	Lead     *Lead

	// Now is returned by every service clock, tests move it freely
	Now time.Time
	ctx context.Context
}

// NewTestSetup creates a new test setup with in-memory database
func NewTestSetup(t *testing.T) *TestSetup {
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
	require.NoError(t, db.Migrate(gdb), "Failed to run migrations")

	ts := &TestSetup{
		DB:           gdb,
		JobRepo:      repos.NewJobRepository(gdb),
		CampaignRepo: repos.NewCampaignRepository(gdb),
		AccountRepo:  repos.NewAccountRepository(gdb),
		LeadRepo:     repos.NewLeadRepository(gdb),
		IG:           &instagram.MockClient{},
		// a Wednesday, 10:00 UTC
		Now: time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
		ctx: context.Background(),
	}
	clock := func() time.Time { return ts.Now }

	detector := geo.NewDetector(geo.MustLexicon())
	ts.Mining = NewMiningService(ts.IG, ts.LeadRepo, detector, intent.NewKeywordClassifier()).WithAccounts(ts.AccountRepo)
	ts.Mining.now = clock
	ts.Campaign = NewCampaignService(ts.CampaignRepo, ts.JobRepo, ts.AccountRepo, ts.LeadRepo, ts.IG)
	ts.Campaign.now = clock
	ts.Job = NewJobService(ts.JobRepo, ts.AccountRepo, ts.LeadRepo, ts.IG, ts.Mining, ts.Campaign, JobOptions{})
	ts.Job.now = clock
	ts.Lead = NewLeadService(ts.LeadRepo, ts.AccountRepo, ts.IG).WithDetector(detector)
	ts.Lead.now = clock

	t.Cleanup(ts.CleanUp)
	return ts
}

// CleanUp cleans up resources after test
func (ts *TestSetup) CleanUp() {
	sqlDB, err := ts.DB.DB()
	if err == nil && sqlDB != nil {
		_ = sqlDB.Close()
	}
}

func (ts *TestSetup) createAccount(t *testing.T, username string, limit int) *models.InstagramAccount {
	t.Helper()
	account := &models.InstagramAccount{
		WorkspaceID:   testWorkspace,
		Username:      username,
		SessionCookie: "sessionid=" + username,
		IsActive:      true,
		DailyLimit:    limit,
	}
	require.NoError(t, ts.AccountRepo.Create(ts.ctx, account))
	return account
}

// createCampaign stores a campaign sending 09:00-17:00 UTC with two steps an hour apart
func (ts *TestSetup) createCampaign(t *testing.T, status models.CampaignStatus, perDay int) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		WorkspaceID:    testWorkspace,
		Name:           "spring",
		Status:         status,
		SendStartTime:  "09:00",
		SendEndTime:    "17:00",
		Timezone:       "UTC",
		MessagesPerDay: perDay,
		Steps: []models.CampaignStep{
			{StepOrder: 0, MessageTemplate: "Merhaba {{first_name}}"},
			{StepOrder: 1, DelayMinutes: 60, MessageTemplate: "Tekrar merhaba {{username}}"},
		},
	}
	require.NoError(t, ts.CampaignRepo.Create(ts.ctx, campaign))
	return campaign
}

func (ts *TestSetup) addRecipient(t *testing.T, campaignID uint, username, fullName string, leadID *uint) *models.CampaignRecipient {
	t.Helper()
	contact := &models.Contact{WorkspaceID: testWorkspace, IgUsername: username, FullName: fullName, LeadID: leadID}
	require.NoError(t, ts.CampaignRepo.CreateContact(ts.ctx, contact))
	r := &models.CampaignRecipient{ContactID: contact.ID}
	require.NoError(t, ts.CampaignRepo.AddRecipients(ts.ctx, campaignID, []*models.CampaignRecipient{r}))
	return r
}

func (ts *TestSetup) createLead(t *testing.T, igUserID, username string) *models.Lead {
	t.Helper()
	res, err := ts.LeadRepo.Upsert(ts.ctx, repos.LeadMatch{Lead: &models.Lead{
		WorkspaceID:     testWorkspace,
		IgUserID:        igUserID,
		IgUsername:      username,
		MatchedKeywords: []string{"fiyat"},
		Source:          DefaultLeadSource,
	}})
	require.NoError(t, err)
	return res.Lead
}

func (ts *TestSetup) enqueue(t *testing.T, jobType models.JobType, payload interface{}, at time.Time, accountID, campaignID, leadID *uint) *models.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	job, err := ts.Job.Enqueue(ts.ctx, EnqueueRequest{
		WorkspaceID: testWorkspace,
		JobType:     jobType,
		Payload:     raw,
		ScheduledAt: at,
		AccountID:   accountID,
		CampaignID:  campaignID,
		LeadID:      leadID,
	})
	require.NoError(t, err)
	return job
}

func (ts *TestSetup) reloadJob(t *testing.T, id uint) *models.Job {
	t.Helper()
	job, err := ts.JobRepo.Get(ts.ctx, id)
	require.NoError(t, err)
	return job
}

func uintPtr(v uint) *uint { return &v }

func comment(id, pk, username, text string, at time.Time) instagram.Comment {
	return instagram.Comment{
		ID:        id,
		Text:      text,
		CreatedAt: at.Unix(),
		User:      instagram.User{PK: pk, Username: username},
	}
}
