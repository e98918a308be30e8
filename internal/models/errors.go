package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to API callers.
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeValidation               = "VALIDATION_ERROR"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeForbidden                = "FORBIDDEN"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeConflict                 = "CONFLICT"
	CodeDuplicatePendingApproval = "DUPLICATE_PENDING_APPROVAL"
	CodeApprovalNotPending       = "APPROVAL_NOT_PENDING"
	CodeSelfApprovalForbidden    = "SELF_APPROVAL_FORBIDDEN"
	CodeDuplicateVote            = "DUPLICATE_VOTE"
	CodeReauthenticationRequired = "REAUTHENTICATION_REQUIRED"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so callers can use errors.Is with the sentinels below.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrForbidden                = &AppError{Code: CodeForbidden}
	ErrNotFound                 = &AppError{Code: CodeNotFound}
	ErrDuplicatePendingApproval = &AppError{Code: CodeDuplicatePendingApproval}
	ErrApprovalNotPending       = &AppError{Code: CodeApprovalNotPending}
	ErrSelfApprovalForbidden    = &AppError{Code: CodeSelfApprovalForbidden}
	ErrDuplicateVote            = &AppError{Code: CodeDuplicateVote}
	ErrReauthenticationRequired = &AppError{Code: CodeReauthenticationRequired}
)

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError reports a role that is not permitted to perform an action.
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewDuplicatePendingApprovalError(actionType ActionType, entityID uint) *AppError {
	return &AppError{
		Code:    CodeDuplicatePendingApproval,
		Message: fmt.Sprintf("a pending %s approval already exists for entity %d", actionType, entityID),
	}
}

func NewApprovalNotPendingError(approvalID uint, status ApprovalStatus) *AppError {
	return &AppError{
		Code:    CodeApprovalNotPending,
		Message: fmt.Sprintf("approval %d is %s, not PENDING", approvalID, status),
	}
}

func NewSelfApprovalError() *AppError {
	return &AppError{
		Code:    CodeSelfApprovalForbidden,
		Message: "requesters cannot decide their own approvals",
	}
}

func NewDuplicateVoteError(approverID uint) *AppError {
	return &AppError{
		Code:    CodeDuplicateVote,
		Message: fmt.Sprintf("approver %d has already voted on this approval", approverID),
	}
}

func NewReauthenticationRequiredError(actionType ActionType) *AppError {
	return &AppError{
		Code:    CodeReauthenticationRequired,
		Message: fmt.Sprintf("%s decisions require recent re-authentication", actionType),
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	if appErr, ok := err.(*AppError); ok {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
