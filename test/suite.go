package test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/instagram"
	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/pkg/api/v1/client"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// DefaultWorkspace is the workspace the seed helpers write to
const DefaultWorkspace = "ws-integration"

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - Temporary SQLite database
//   - Real services and API server
//   - Real API client
//   - Mocked Instagram client
type Suite struct {
	t *testing.T

	// Server components
	App    *fiber.App
	Server *httptest.Server

	// Client components
	APIClient client.Client

	// Database components
	DB           *gorm.DB
	JobRepo      *repos.JobRepository
	CampaignRepo *repos.CampaignRepository
	AccountRepo  *repos.AccountRepository
	LeadRepo     *repos.LeadRepository

	// Services behind the API
	Jobs       *services.Job
	Campaigns  *services.Campaign
	Mining     *services.Mining
	Autonomous *services.Autonomous
	Leads      *services.Lead

	// IG replaces the Instagram gateway
	IG *instagram.MockClient
	// StateDir holds autonomous run snapshots
	StateDir string

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc

	cleanup func()
}

// NewSuite creates a new test suite.
// The suite must be cleaned up after use by calling Cleanup.
func NewSuite(t *testing.T) *Suite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)

	suite := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
		IG:         &instagram.MockClient{},
		StateDir:   t.TempDir(),
	}

	suite.cleanup = func() {
		if suite.cancelFunc != nil {
			suite.cancelFunc()
		}
	}

	SetupTestDB(suite, nil)
	SetupServer(suite)

	return suite
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// Require returns a require.Assertions instance for this suite.
// This is a convenience method to avoid passing t around.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}

// CreateAccount stores an active sender account in the default workspace
func (s *Suite) CreateAccount(username string, dailyLimit int) *models.InstagramAccount {
	account := &models.InstagramAccount{
		WorkspaceID:   DefaultWorkspace,
		Username:      username,
		SessionCookie: "sessionid=" + username,
		IsActive:      true,
		DailyLimit:    dailyLimit,
	}
	s.Require().NoError(s.AccountRepo.Create(s.ctx, account))
	return account
}
