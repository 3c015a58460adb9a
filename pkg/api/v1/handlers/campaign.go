package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/internal/types"
)

// CampaignHandler handles HTTP requests for campaign operations
type CampaignHandler struct {
	service *services.Campaign
}

// NewCampaignHandler creates a new campaign handler instance
func NewCampaignHandler(service *services.Campaign) *CampaignHandler {
	return &CampaignHandler{service: service}
}

// ProcessCampaigns handles the request to advance every running campaign
func (h *CampaignHandler) ProcessCampaigns(c *fiber.Ctx) error {
	outcomes, err := h.service.ProcessRunningCampaigns(c.Context())
	if err != nil {
		return respondWithServiceError(c, err, ErrMsgCampaignProcFailed, "")
	}
	if outcomes == nil {
		outcomes = []services.CampaignOutcome{}
	}

	return respondWithData(c, fiber.StatusOK, outcomes, "")
}

// ScheduleCampaign handles the request to assign sender accounts to the
// recipients of a campaign and spread their first sends over the send windows
func (h *CampaignHandler) ScheduleCampaign(c *fiber.Ctx) error {
	campaignID, ok := parseID(c)
	if !ok {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidCampaignID, nil, "")
	}

	var params ScheduleCampaignParams
	if err := c.BodyParser(&params); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidReqBody, err.Error(), "")
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, "")
	}

	recipients, err := h.service.AssignRecipientsAndSchedule(c.Context(), campaignID, params.Config())
	if err != nil {
		return respondWithServiceError(c, err, failureMessage(err, ErrMsgCampaignNotFound, ErrMsgCampaignSchedFailed), "")
	}

	return respondWithData(c, fiber.StatusOK, types.CampaignScheduleResponse{
		CampaignID: campaignID,
		Scheduled:  len(recipients),
		Recipients: recipients,
	}, "")
}
