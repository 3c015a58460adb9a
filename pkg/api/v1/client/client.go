// Package client provides the API client for interacting with the outreach API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/internal/types"
	"github.com/socialora/outreach/pkg/api/v1/handlers"
	"github.com/socialora/outreach/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (types.HealthResponse, error)

	// Job Endpoints
	EnqueueJob(ctx context.Context, params handlers.EnqueueJobParams) (models.Job, error)
	ClaimJob(ctx context.Context) (services.ClaimResult, error)
	GetJob(ctx context.Context, workspaceID string, id uint) (models.Job, error)
	CheckJobSchedule(ctx context.Context, id uint) (services.ScheduleCheck, error)

	// Campaign Endpoints
	ProcessCampaigns(ctx context.Context) ([]services.CampaignOutcome, error)
	ScheduleCampaign(ctx context.Context, id uint, params handlers.ScheduleCampaignParams) (types.CampaignScheduleResponse, error)

	// Mining Endpoints
	RunMining(ctx context.Context, params handlers.MiningRunParams) (services.MiningResult, error)
	StartAutonomous(ctx context.Context, req services.AutonomousRequest) (string, error)
	StopAutonomous(ctx context.Context, runID string) error

	// Lead methods
	GetLead(ctx context.Context, params handlers.LeadGetParams) (models.Lead, error)
	ListLeads(ctx context.Context, params handlers.LeadListParams) ([]models.Lead, error)
	EnrichLead(ctx context.Context, params handlers.LeadEnrichParams) (models.Lead, error)

	// Job methods
	ListJobs(ctx context.Context, params handlers.JobListParams) ([]models.Job, error)
}

var _ Client = &APIClient{}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	case http.MethodPut:
		agent = fiber.Put(fullURL)
	case http.MethodDelete:
		agent = fiber.Delete(fullURL)
	case http.MethodPatch:
		agent = fiber.Patch(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")

	if body != nil {
		agent.JSON(body)
	}

	return agent, nil
}

// responseError turns a non-success answer into a fiber.Error, using the
// envelope message when the body carries one
func responseError(statusCode int, body []byte) error {
	var envelope handlers.RPCResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		msg := envelope.Error.Message
		if detail, ok := envelope.Error.Data.(string); ok && detail != "" {
			msg = fmt.Sprintf("%s: %s", msg, detail)
		}
		return &fiber.Error{Code: statusCode, Message: msg}
	}
	return &fiber.Error{
		Code:    statusCode,
		Message: string(body),
	}
}

// decodeEnvelope unwraps the data of a success envelope into v
func decodeEnvelope(body []byte, v interface{}) error {
	var envelope handlers.RPCResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}

	if envelope.Error != nil {
		return fmt.Errorf("API error: %s (code: %d)", envelope.Error.Message, envelope.Error.Code)
	}

	if !envelope.Success {
		return fmt.Errorf("API call failed without specific error details")
	}

	if v == nil || envelope.Data == nil {
		return nil
	}

	// Data is decoded as interface{}, go through JSON again to reach the target type
	dataBytes, err := json.Marshal(envelope.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal data field: %w", err)
	}

	if err := json.Unmarshal(dataBytes, v); err != nil {
		return fmt.Errorf("failed to unmarshal data into result: %w", err)
	}

	return nil
}

// doRequest sends the HTTP request and decodes the response envelope into v
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return responseError(statusCode, body)
	}

	return decodeEnvelope(body, v)
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	return c.doRequest(agent, response)
}

// executeRPC performs the actual RPC call
func (c *APIClient) executeRPC(ctx context.Context, method string, params interface{}, result interface{}) error {
	requestBody := handlers.RPCRequest{
		Method: method,
		Params: params,
	}

	agent, err := c.createAgent(ctx, http.MethodPost, routes.RPCURL(), requestBody)
	if err != nil {
		return err
	}

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending RPC request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		return responseError(statusCode, body)
	}

	if err := decodeEnvelope(body, result); err != nil {
		return fmt.Errorf("RPC %s: %w", method, err)
	}
	return nil
}

// Health check implementation

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (types.HealthResponse, error) {
	agent, err := c.createAgent(ctx, http.MethodGet, routes.HealthCheckURL(), nil)
	if err != nil {
		return types.HealthResponse{}, err
	}

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return types.HealthResponse{}, fmt.Errorf("error sending request: %w", errs[0])
	}
	if statusCode != http.StatusOK {
		return types.HealthResponse{}, responseError(statusCode, body)
	}

	var response types.HealthResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return types.HealthResponse{}, fmt.Errorf("error decoding response: %w", err)
	}
	return response, nil
}

// Job methods implementation

// EnqueueJob adds a job to the queue
func (c *APIClient) EnqueueJob(ctx context.Context, params handlers.EnqueueJobParams) (models.Job, error) {
	var job models.Job
	if err := c.executeRequest(ctx, http.MethodPost, routes.EnqueueJobURL(), params, &job); err != nil {
		return models.Job{}, err
	}
	return job, nil
}

// ClaimJob claims and processes the next due job
func (c *APIClient) ClaimJob(ctx context.Context) (services.ClaimResult, error) {
	var res services.ClaimResult
	if err := c.executeRequest(ctx, http.MethodPost, routes.ClaimJobURL(), nil, &res); err != nil {
		return services.ClaimResult{}, err
	}
	return res, nil
}

// GetJob retrieves a job of a workspace
func (c *APIClient) GetJob(ctx context.Context, workspaceID string, id uint) (models.Job, error) {
	var job models.Job
	if err := c.executeRequest(ctx, http.MethodGet, routes.GetJobURL(id, workspaceID), nil, &job); err != nil {
		return models.Job{}, err
	}
	return job, nil
}

// CheckJobSchedule re-evaluates a queued campaign job against its send window
func (c *APIClient) CheckJobSchedule(ctx context.Context, id uint) (services.ScheduleCheck, error) {
	var check services.ScheduleCheck
	if err := c.executeRequest(ctx, http.MethodPost, routes.CheckJobScheduleURL(id), nil, &check); err != nil {
		return services.ScheduleCheck{}, err
	}
	return check, nil
}

// Campaign methods implementation

// ProcessCampaigns advances every running campaign
func (c *APIClient) ProcessCampaigns(ctx context.Context) ([]services.CampaignOutcome, error) {
	var outcomes []services.CampaignOutcome
	if err := c.executeRequest(ctx, http.MethodPost, routes.ProcessCampaignsURL(), nil, &outcomes); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// ScheduleCampaign assigns sender accounts and first send times to campaign recipients
func (c *APIClient) ScheduleCampaign(ctx context.Context, id uint, params handlers.ScheduleCampaignParams) (types.CampaignScheduleResponse, error) {
	var response types.CampaignScheduleResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.ScheduleCampaignURL(id), params, &response); err != nil {
		return types.CampaignScheduleResponse{}, err
	}
	return response, nil
}

// Mining methods implementation

// RunMining mines the comments of a set of posts once
func (c *APIClient) RunMining(ctx context.Context, params handlers.MiningRunParams) (services.MiningResult, error) {
	var res services.MiningResult
	if err := c.executeRequest(ctx, http.MethodPost, routes.RunMiningURL(), params, &res); err != nil {
		return services.MiningResult{}, err
	}
	return res, nil
}

// StartAutonomous starts a background mining run and returns its ID
func (c *APIClient) StartAutonomous(ctx context.Context, req services.AutonomousRequest) (string, error) {
	var response types.AutonomousStartResponse
	if err := c.executeRequest(ctx, http.MethodPost, routes.StartAutonomousURL(), req, &response); err != nil {
		return "", err
	}
	return response.RunID, nil
}

// StopAutonomous raises the stop signal of a run
func (c *APIClient) StopAutonomous(ctx context.Context, runID string) error {
	return c.executeRequest(ctx, http.MethodPost, routes.StopAutonomousURL(), handlers.AutonomousStopParams{RunID: runID}, nil)
}

// Lead methods implementation

// GetLead retrieves a lead by id
func (c *APIClient) GetLead(ctx context.Context, params handlers.LeadGetParams) (models.Lead, error) {
	var lead models.Lead
	if err := c.executeRPC(ctx, handlers.LeadGet, params, &lead); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// ListLeads lists the leads of a workspace
func (c *APIClient) ListLeads(ctx context.Context, params handlers.LeadListParams) ([]models.Lead, error) {
	var listResponse types.ListResponse[models.Lead]
	if err := c.executeRPC(ctx, handlers.LeadList, params, &listResponse); err != nil {
		return nil, err
	}
	return listResponse.Rows, nil
}

// EnrichLead refreshes a lead from its Instagram profile
func (c *APIClient) EnrichLead(ctx context.Context, params handlers.LeadEnrichParams) (models.Lead, error) {
	var lead models.Lead
	if err := c.executeRPC(ctx, handlers.LeadEnrich, params, &lead); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

// ListJobs lists the jobs of a workspace
func (c *APIClient) ListJobs(ctx context.Context, params handlers.JobListParams) ([]models.Job, error) {
	var listResponse types.ListResponse[models.Job]
	if err := c.executeRPC(ctx, handlers.JobList, params, &listResponse); err != nil {
		return nil, err
	}
	return listResponse.Rows, nil
}
