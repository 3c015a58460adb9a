// Package handlers provides HTTP request handling
package handlers

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/internal/types"
)

// LeadHandlers contains all lead related RPC handlers
type LeadHandlers struct {
	service *services.Lead
}

// NewLeadHandlers creates the lead RPC handlers
func NewLeadHandlers(service *services.Lead) *LeadHandlers {
	return &LeadHandlers{service: service}
}

// Get handles retrieving a lead by id
func (h *LeadHandlers) Get(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[LeadGetParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	lead, err := h.service.Get(c.Context(), params.WorkspaceID, params.LeadID)
	if err != nil {
		return respondWithServiceError(c, err, failureMessage(err, ErrMsgLeadNotFound, ErrMsgLeadGetFailed), req.ID)
	}

	return respondWithData(c, fiber.StatusOK, lead, req.ID)
}

// List handles listing the leads of a workspace, best score first
func (h *LeadHandlers) List(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[LeadListParams](req)
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

	leads, err := h.service.List(c.Context(), params.WorkspaceID, params.Filter(), listOpts)
	if err != nil {
		return respondWithServiceError(c, err, ErrMsgLeadListFailed, req.ID)
	}

	return respondWithData(c, fiber.StatusOK, types.ListResponse[models.Lead]{
		Rows: leads,
		Pagination: types.PaginationResponse{
			Total:  len(leads),
			Page:   page,
			Limit:  listOpts.Limit,
			Offset: listOpts.Offset,
		},
	}, req.ID)
}

// Enrich handles refreshing a lead from its Instagram profile
func (h *LeadHandlers) Enrich(c *fiber.Ctx, req RPCRequest) error {
	params, err := parseParams[LeadEnrichParams](req)
	if err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidParams, err.Error(), req.ID)
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, req.ID)
	}

	lead, err := h.service.Enrich(c.Context(), params.WorkspaceID, params.LeadID)
	if err != nil {
		return respondWithServiceError(c, err, failureMessage(err, ErrMsgLeadNotFound, ErrMsgLeadEnrichFailed), req.ID)
	}

	return respondWithData(c, fiber.StatusOK, lead, req.ID)
}
