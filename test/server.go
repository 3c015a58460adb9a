package test

import (
	"errors"
	"net/http/httptest"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/socialora/outreach/internal/api/v1/middleware"
	"github.com/socialora/outreach/internal/control"
	"github.com/socialora/outreach/internal/geo"
	"github.com/socialora/outreach/internal/intent"
	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/pkg/api/v1/client"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
	"github.com/socialora/outreach/pkg/api/v1/routes"
)

var errRunsActive = errors.New("autonomous runs still active")

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// SetupServer configures the test suite with a real API server
func SetupServer(suite *Suite) {
	suite.App = fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	suite.App.Use(middleware.Logger())

	detector := geo.NewDetector(geo.MustLexicon())
	suite.Mining = services.NewMiningService(suite.IG, suite.LeadRepo, detector, intent.NewKeywordClassifier()).
		WithAccounts(suite.AccountRepo)
	suite.Campaigns = services.NewCampaignService(suite.CampaignRepo, suite.JobRepo, suite.AccountRepo, suite.LeadRepo, suite.IG)
	suite.Jobs = services.NewJobService(suite.JobRepo, suite.AccountRepo, suite.LeadRepo, suite.IG, suite.Mining, suite.Campaigns, services.JobOptions{})
	suite.Autonomous = services.NewAutonomousService(suite.Mining, suite.IG, suite.AccountRepo, control.NewMemoryStopSignal(), suite.StateDir)
	suite.Leads = services.NewLeadService(suite.LeadRepo, suite.AccountRepo, suite.IG).WithDetector(detector)

	api := handlers.NewAPIHandler(suite.Jobs, suite.Campaigns, suite.Mining, suite.Autonomous, suite.Leads)
	routes.RegisterRoutes(suite.App, api)

	// Create test server using adaptor to convert Fiber app to http.Handler
	suite.Server = httptest.NewServer(adaptor.FiberApp(suite.App))

	apiClient, err := client.NewClient(&client.Options{
		BaseURL: suite.Server.URL,
		Timeout: testClientTimeout,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = apiClient

	// Stop background runs and the server before the database goes away
	originalCleanup := suite.cleanup
	suite.cleanup = func() {
		suite.Autonomous.Shutdown()
		_ = suite.Retry(func() error {
			if len(suite.Autonomous.Running()) > 0 {
				return errRunsActive
			}
			return nil
		}, 200, 10*time.Millisecond)
		if suite.Server != nil {
			suite.Server.Close()
		}
		if originalCleanup != nil {
			originalCleanup()
		}
	}
}
