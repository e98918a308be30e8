package server

import (
	"donasi/internal/models"
	"donasi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateRoleUpgrade handles POST /api/role-upgrades
// A request that is already pending is returned with 200 instead of 201.
func (s *Server) CreateRoleUpgrade(c *fiber.Ctx) error {
	var req service.RoleUpgradeInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	result, err := s.roleUpgradeService.Create(c.UserContext(), currentUserID(c), req)
	var payload any
	if result != nil {
		payload = result
	}
	return s.respondSubmitted(c, fiber.StatusCreated, payload, err)
}

// GetMyRoleUpgrades handles GET /api/role-upgrades/me
func (s *Server) GetMyRoleUpgrades(c *fiber.Ctx) error {
	requests, err := s.roleUpgradeService.ListMine(c.UserContext(), currentUserID(c))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(requests)
}
