package handlers

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/socialora/outreach/internal/services"
	"github.com/socialora/outreach/internal/types"
)

// MiningHandler handles HTTP requests for comment mining
type MiningHandler struct {
	mining     *services.Mining
	autonomous *services.Autonomous
}

// NewMiningHandler creates a new mining handler instance
func NewMiningHandler(mining *services.Mining, autonomous *services.Autonomous) *MiningHandler {
	return &MiningHandler{
		mining:     mining,
		autonomous: autonomous,
	}
}

// RunMining handles the request to mine the comments of a set of posts once
func (h *MiningHandler) RunMining(c *fiber.Ctx) error {
	var params MiningRunParams
	if err := c.BodyParser(&params); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidReqBody, err.Error(), "")
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, "")
	}

	res, err := h.mining.RunForAccount(c.Context(), params.AccountID, params.Request())
	if err != nil {
		return respondWithServiceError(c, err, ErrMsgMiningFailed, "")
	}

	return respondWithData(c, fiber.StatusOK, res, "")
}

// StartAutonomous handles the request to start a background mining run
func (h *MiningHandler) StartAutonomous(c *fiber.Ctx) error {
	var req services.AutonomousRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidReqBody, err.Error(), "")
	}

	runID, err := h.autonomous.Start(req)
	if err != nil {
		msg := ErrMsgAutonomousFailed
		if errors.Is(err, services.ErrRunInProgress) {
			msg = ErrMsgRunInProgress
		}
		return respondWithServiceError(c, err, msg, "")
	}

	return respondWithData(c, fiber.StatusAccepted, types.AutonomousStartResponse{RunID: runID}, "")
}

// StopAutonomous handles the request to raise the stop signal of a run
func (h *MiningHandler) StopAutonomous(c *fiber.Ctx) error {
	var params AutonomousStopParams
	if err := c.BodyParser(&params); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, ErrMsgInvalidReqBody, err.Error(), "")
	}

	if err := params.Validate(); err != nil {
		return respondWithRPCError(c, fiber.StatusBadRequest, err.Error(), nil, "")
	}

	if err := h.autonomous.Stop(c.Context(), params.RunID); err != nil {
		return respondWithServiceError(c, err, ErrMsgStopFailed, "")
	}

	return respondWithData(c, fiber.StatusOK, types.AutonomousStartResponse{RunID: params.RunID}, "")
}
