package server

import (
	"errors"
	"strings"
	"unicode"

	"donasi/internal/middleware"
	"donasi/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	maxPaginationLimit = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "programId" -> "program ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// currentUserID returns the id stored by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := middleware.UserID(c)
	return id
}

// statusForCode maps AppError codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case models.CodeForbidden, models.CodeSelfApprovalForbidden:
		return fiber.StatusForbidden
	case models.CodeDuplicatePendingApproval:
		return fiber.StatusOK
	case models.CodeApprovalNotPending, models.CodeDuplicateVote, models.CodeConflict:
		return fiber.StatusConflict
	case models.CodeReauthenticationRequired, models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondServiceError writes err using the status for its code.
func (s *Server) respondServiceError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.NewInternalError(err)
	}
	if appErr.Code == models.CodeInternal && s.config.IsProduction() {
		appErr = &models.AppError{Code: appErr.Code, Message: appErr.Message}
	}
	return models.RespondWithError(c, statusForCode(appErr.Code), appErr)
}

// duplicateResponse is returned with 200 when a submission matched an
// approval that is already pending.
type duplicateResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Approval any    `json:"approval"`
}

// respondSubmitted writes a submission result. A duplicate is a success that
// carries the existing record.
func (s *Server) respondSubmitted(c *fiber.Ctx, created int, payload any, err error) error {
	if err == nil {
		return c.Status(created).JSON(payload)
	}
	if errors.Is(err, models.ErrDuplicatePendingApproval) && payload != nil {
		var appErr *models.AppError
		errors.As(err, &appErr)
		return c.Status(fiber.StatusOK).JSON(duplicateResponse{
			Code:     appErr.Code,
			Message:  appErr.Message,
			Approval: payload,
		})
	}
	return s.respondServiceError(c, err)
}
