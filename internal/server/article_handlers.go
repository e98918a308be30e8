package server

import (
	"donasi/internal/models"
	"donasi/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateArticle handles POST /api/articles
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	var req service.ArticleInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	article, err := s.contentService.CreateArticle(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(article)
}

// UpdateArticle handles PUT /api/articles/:id
func (s *Server) UpdateArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req service.ArticleInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	article, err := s.contentService.UpdateArticle(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return s.respondServiceError(c, err)
	}
	return c.JSON(article)
}

// SubmitArticle handles POST /api/articles/:id/submit
func (s *Server) SubmitArticle(c *fiber.Ctx) error {
	return s.submit(c, models.ActionArticlePublish)
}
