package server

import (
	"donasi/internal/models"
	"donasi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTopDonors handles GET /api/reports/top-donors?limit=
func (s *Server) GetTopDonors(c *fiber.Ctx) error {
	page := parsePagination(c, 10)

	entries, err := s.aggregationService.TopDonors(c.UserContext(), page.Limit)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(entries)
}

// GetTrends handles GET /api/reports/trends?period=daily|weekly|monthly&days=
func (s *Server) GetTrends(c *fiber.Ctx) error {
	period, err := service.ParseTrendPeriod(c.Query("period"))
	if err != nil {
		return s.respondServiceError(c, err)
	}
	days := c.QueryInt("days", 0)
	if days < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("days must not be negative"))
	}

	buckets, err := s.aggregationService.Trends(c.UserContext(), period, days)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"period":  period,
		"buckets": buckets,
	})
}

// RecomputeProgramFund handles POST /api/internal/programs/:id/recompute
// The payment webhook calls it after a donation transition.
func (s *Server) RecomputeProgramFund(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	collected, err := s.aggregationService.RecomputeProgramFund(c.UserContext(), id)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"program_id":       id,
		"collected_amount": collected,
	})
}
