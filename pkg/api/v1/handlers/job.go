package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/services"
)

// JobHandler handles HTTP requests for job operations
type JobHandler struct {
	jobService      *services.Job
	campaignService *services.Campaign
}

// NewJobHandler creates a new job handler instance
func NewJobHandler(s *services.Job, campaignService *services.Campaign) *JobHandler {
	return &JobHandler{
		jobService:      s,
		campaignService: campaignService,
	}
}

// parseID reads a positive numeric route parameter
func parseID(c *fiber.Ctx) (uint, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return uint(id), true
}

// EnqueueJob handles the request to add a job to the queue
func (h *JobHandler) EnqueueJob(c *fiber.Ctx) error {
	var params EnqueueJobParams
	if err := c.BodyParser(&params); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidReqBody, err.Error(), "")
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, "")
	}

	job, err := h.jobService.Enqueue(c.Context(), params.Request())
	if err != nil {
		return respondWithServiceError(c, err, ErrMsgJobEnqueueFailed, "")
	}

	return respondWithData(c, fiber.StatusCreated, job, "")
}

// ClaimJob handles the request to claim and process the next due job
func (h *JobHandler) ClaimJob(c *fiber.Ctx) error {
	res, err := h.jobService.ClaimAndProcess(c.Context())
	if err != nil {
		return respondWithServiceError(c, err, ErrMsgJobClaimFailed, "")
	}

	return respondWithData(c, fiber.StatusOK, res, "")
}

// GetJob handles the request to get a job of a workspace
func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	jobID, ok := parseID(c)
	if !ok {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidJobID, nil, "")
	}

	workspaceID := c.Query("workspace_id")
	if workspaceID == "" {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgWorkspaceRequired, nil, "")
	}

	job, err := h.jobService.Get(c.Context(), workspaceID, jobID)
	if err != nil {
		return respondWithServiceError(c, err, failureMessage(err, ErrMsgJobNotFound, ErrMsgJobGetFailed), "")
	}

	return respondWithData(c, fiber.StatusOK, job, "")
}

// CheckJobSchedule handles the request to move a queued campaign job back into
// its send window
func (h *JobHandler) CheckJobSchedule(c *fiber.Ctx) error {
	jobID, ok := parseID(c)
	if !ok {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidJobID, nil, "")
	}

	check, err := h.campaignService.CheckJobSchedule(c.Context(), jobID)
	if err != nil {
		return respondWithServiceError(c, err, failureMessage(err, ErrMsgJobNotFound, ErrMsgScheduleCheckFailed), "")
	}

	return respondWithData(c, fiber.StatusOK, check, "")
}
