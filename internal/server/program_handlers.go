package server

import (
	"donasi/internal/models"
	"donasi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateProgram handles POST /api/programs
func (s *Server) CreateProgram(c *fiber.Ctx) error {
	var req service.ProgramInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	program, err := s.contentService.CreateProgram(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(program)
}

// UpdateProgram handles PUT /api/programs/:id
func (s *Server) UpdateProgram(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req service.ProgramInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	program, err := s.contentService.UpdateProgram(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(program)
}

// SubmitProgram handles POST /api/programs/:id/submit
func (s *Server) SubmitProgram(c *fiber.Ctx) error {
	return s.submit(c, models.ActionProgramPublish)
}

// submit opens an approval for the entity named by the :id param.
func (s *Server) submit(c *fiber.Ctx, actionType models.ActionType) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.approvalService.Submit(c.UserContext(), service.SubmitInput{
		ActionType:  actionType,
		EntityID:    id,
		RequesterID: currentUserID(c),
	})
	var payload any
	if view != nil {
		payload = view
	}
	return s.respondSubmitted(c, fiber.StatusCreated, payload, err)
}

// GetProgramSummary handles GET /api/programs/:id/summary
func (s *Server) GetProgramSummary(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	summary, err := s.aggregationService.ProgramSummary(c.UserContext(), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(summary)
}

// GetProgramDonors handles GET /api/programs/:id/donors
// A missing or non-positive limit returns every donor.
func (s *Server) GetProgramDonors(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	limit := c.QueryInt("limit", 0)
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.aggregationService.ProgramDonors(c.UserContext(), id, limit, offset)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(rows)
}
