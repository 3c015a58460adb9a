// Package handlers provides HTTP request handling
package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/internal/types"
)

// JobHandlers contains the job related RPC handlers
type JobHandlers struct {
	service *services.Job
}

// NewJobHandlers creates the job RPC handlers
func NewJobHandlers(service *services.Job) *JobHandlers {
	return &JobHandlers{service: service}
}

// List handles listing the jobs of a workspace, newest first
func (h *JobHandlers) List(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[JobListParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	page := 1
	if params.Page > 0 {
		page = params.Page
	}
	listOpts := getPaginationOptions(page, params.Limit)

	jobs, err := h.service.List(c.Context(), params.WorkspaceID, params.Filter(), listOpts)
	if err != nil {
		return respondWithServiceError(c, err, ErrMsgJobListFailed, req.ID)
	}

	return respondWithData(c, fiber.StatusOK, types.ListResponse[models.Job]{
		Rows: jobs,
		Pagination: types.PaginationResponse{
			Total:  len(jobs),
			Page:   page,
			Limit:  listOpts.Limit,
			Offset: listOpts.Offset,
		},
	}, req.ID)
}
