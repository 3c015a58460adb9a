// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/types"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
)

/*

To keep this file organized, routes should be organized in the following way:

1. Smallest scope first (i.e. job routes before campaign routes)
2. For similar scopes, put the endpoints in alphabetical order
3. Order routes in GET, POST, PUT, DELETE order.
	a. Within this ordering, param urls (ie /:id) should go last, otherwise fiber will interpret the route slug as that param.
	b. After param considerations, order alphabetically.
4. For clarity, naming should match the action (i.e. GetJob, ClaimJob)

*/

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"

	// Job routes
	GetJob           = "GetJob"
	EnqueueJob       = "EnqueueJob"
	ClaimJob         = "ClaimJob"
	CheckJobSchedule = "CheckJobSchedule"

	// Campaign routes
	ProcessCampaigns = "ProcessCampaigns"
	ScheduleCampaign = "ScheduleCampaign"

	// Mining routes
	RunMining       = "RunMining"
	StartAutonomous = "StartAutonomous"
	StopAutonomous  = "StopAutonomous"

	// RPC routes
	RPC = "RPC"
)

// routeCache stores extracted routes for use prior to compilation
var (
	routeCache     map[string]string
	routeCacheMu   sync.RWMutex
	routeCacheInit sync.Once
)

// RegisterRoutes configures all the v1 routes
//
// NOTE: route ordering is important because routes will try and match in the order they are registered.
// For example, if we register /jobs/:id before /jobs/claim, claim will get interpreted as a job ID.
func RegisterRoutes(app *fiber.App, api *handlers.APIHandler) {
	v1 := app.Group(APIv1Prefix)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(types.HealthResponse{Status: "healthy"})
	}).Name(HealthCheck)

	// Job endpoints
	jobs := v1.Group("/jobs")
	jobs.Get("/:id", api.Jobs.GetJob).Name(GetJob)
	jobs.Post("/", api.Jobs.EnqueueJob).Name(EnqueueJob)
	jobs.Post("/claim", api.Jobs.ClaimJob).Name(ClaimJob)
	jobs.Post("/:id/schedule-check", api.Jobs.CheckJobSchedule).Name(CheckJobSchedule)

	// ---------------------------
	// Campaign endpoints
	campaigns := v1.Group("/campaigns")
	campaigns.Post("/process", api.Campaigns.ProcessCampaigns).Name(ProcessCampaigns)
	campaigns.Post("/:id/schedule", api.Campaigns.ScheduleCampaign).Name(ScheduleCampaign)

	// ---------------------------
	// Mining endpoints
	mining := v1.Group("/mining")
	mining.Post("/autonomous", api.Mining.StartAutonomous).Name(StartAutonomous)
	mining.Post("/autonomous/stop", api.Mining.StopAutonomous).Name(StopAutonomous)
	mining.Post("/runs", api.Mining.RunMining).Name(RunMining)

	// RPC endpoint for lead and job queries
	v1.Post("/", api.RPC.HandleRPC).Name(RPC)
}

// initRouteCache initializes the route cache by creating a mock app and extracting routes
func initRouteCache() {
	routeCacheInit.Do(func() {
		routeCache = make(map[string]string)

		app := fiber.New()

		// Register routes with empty handlers, only the paths matter
		RegisterRoutes(app, &handlers.APIHandler{
			Jobs:      &handlers.JobHandler{},
			Campaigns: &handlers.CampaignHandler{},
			Mining:    &handlers.MiningHandler{},
			RPC:       &handlers.RPCHandler{},
		})

		for _, route := range app.GetRoutes() {
			if route.Name != "" {
				routeCache[route.Name] = route.Path
			}
		}
	})
}

// GetRoute returns the route pattern for the given route name
func GetRoute(name string) string {
	routeCacheMu.RLock()
	defer routeCacheMu.RUnlock()

	// Initialize cache if needed
	if routeCache == nil {
		routeCacheMu.RUnlock()
		initRouteCache()
		routeCacheMu.RLock()
	}

	return routeCache[name]
}

// BuildURL builds a URL for the given route name and parameters
func BuildURL(routeName string, params map[string]string, queryParams url.Values) string {
	route := GetRoute(routeName)
	if route == "" {
		return ""
	}

	for param, value := range params {
		route = strings.ReplaceAll(route, ":"+param, value)
	}

	// Remove trailing slash if it's a base endpoint with no parameters
	if strings.HasSuffix(route, "/") && !strings.Contains(route, ":") {
		route = strings.TrimSuffix(route, "/")
	}

	if len(queryParams) > 0 {
		route = fmt.Sprintf("%s?%s", route, queryParams.Encode())
	}

	return route
}

// HealthCheckURL returns the URL for the health check endpoint
func HealthCheckURL() string {
	return BuildURL(HealthCheck, nil, nil)
}

// Job route helpers

// GetJobURL returns the URL for getting a job of a workspace
func GetJobURL(id uint, workspaceID string) string {
	return BuildURL(GetJob, map[string]string{"id": fmt.Sprint(id)}, url.Values{"workspace_id": []string{workspaceID}})
}

// EnqueueJobURL returns the URL for enqueueing a job
func EnqueueJobURL() string {
	return BuildURL(EnqueueJob, nil, nil)
}

// ClaimJobURL returns the URL for claiming the next due job
func ClaimJobURL() string {
	return BuildURL(ClaimJob, nil, nil)
}

// CheckJobScheduleURL returns the URL for the schedule check of a job
func CheckJobScheduleURL(id uint) string {
	return BuildURL(CheckJobSchedule, map[string]string{"id": fmt.Sprint(id)}, nil)
}

// Campaign route helpers

// ProcessCampaignsURL returns the URL for processing running campaigns
func ProcessCampaignsURL() string {
	return BuildURL(ProcessCampaigns, nil, nil)
}

// ScheduleCampaignURL returns the URL for scheduling a campaign
func ScheduleCampaignURL(id uint) string {
	return BuildURL(ScheduleCampaign, map[string]string{"id": fmt.Sprint(id)}, nil)
}

// Mining route helpers

// RunMiningURL returns the URL for a single mining pass
func RunMiningURL() string {
	return BuildURL(RunMining, nil, nil)
}

// StartAutonomousURL returns the URL for starting an autonomous run
func StartAutonomousURL() string {
	return BuildURL(StartAutonomous, nil, nil)
}

// StopAutonomousURL returns the URL for stopping an autonomous run
func StopAutonomousURL() string {
	return BuildURL(StopAutonomous, nil, nil)
}

// RPC route helper

// RPCURL returns the URL for the RPC endpoint
func RPCURL() string {
	return BuildURL(RPC, nil, nil)
}
