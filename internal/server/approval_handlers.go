package server

import (
	"strings"

	"donasi/internal/middleware"
	"donasi/internal/models"
	"donasi/internal/repository"
	"donasi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListApprovals handles GET /api/approvals?action_type=&status=&entity_id=
func (s *Server) ListApprovals(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	filter := repository.ApprovalFilter{
		ActionType: models.ActionType(strings.ToUpper(c.Query("action_type"))),
		Status:     models.ApprovalStatus(strings.ToUpper(c.Query("status"))),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if raw := c.Query("entity_id"); raw != "" {
		entityID := c.QueryInt("entity_id", 0)
		if entityID <= 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid entity ID"))
		}
		filter.EntityID = uint(entityID)
	}

	views, err := s.approvalService.List(c.UserContext(), currentUserID(c), filter)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(views)
}

// GetApproval handles GET /api/approvals/:id
func (s *Server) GetApproval(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	view, err := s.approvalService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(view)
}

// DecideApproval handles POST /api/approvals/:id/decide
func (s *Server) DecideApproval(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Action  string `json:"action"`
		Comment string `json:"comment"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	view, err := s.approvalService.Decide(c.UserContext(), service.DecideInput{
		ApprovalID:      id,
		ApproverID:      currentUserID(c),
		Action:          models.DecisionAction(strings.ToUpper(strings.TrimSpace(req.Action))),
		Comment:         strings.TrimSpace(req.Comment),
		Reauthenticated: middleware.Reauthenticated(c, s.config.ReauthWindow(), s.now()),
	})
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(view)
}
