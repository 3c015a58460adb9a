package handlers

import "github.com/socialora/outreach/internal/services"

// APIHandler groups the handlers registered on the v1 routes
type APIHandler struct {
	Jobs      *JobHandler
	Campaigns *CampaignHandler
	Mining    *MiningHandler
	RPC       *RPCHandler
}

// NewAPIHandler creates every handler from the services they call
func NewAPIHandler(
	job *services.Job,
	campaign *services.Campaign,
	mining *services.Mining,
	autonomous *services.Autonomous,
	lead *services.Lead,
) *APIHandler {
	return &APIHandler{
		Jobs:      NewJobHandler(job, campaign),
		Campaigns: NewCampaignHandler(campaign),
		Mining:    NewMiningHandler(mining, autonomous),
		RPC: &RPCHandler{
			LeadHandlers: NewLeadHandlers(lead),
			JobHandlers:  NewJobHandlers(job),
		},
	}
}
