package errors

import (
	"errors"
	"log"
	"net/http"

	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/quota"
	"github.com/hivebridge/hivebridge/pkg/referral"
	"github.com/labstack/echo/v4"
)

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// DatabaseError returns a generic database error without exposing internal details
func DatabaseError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[DATABASE ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "database_error",
		Message: "A database error occurred. Please try again later.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	// Log the actual error for debugging
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// UnauthorizedError returns a generic unauthorized error
func UnauthorizedError(c echo.Context, reason string) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: "You are not authorized to access this resource.",
	})
}

// ForbiddenError returns a generic forbidden error
func ForbiddenError(c echo.Context, reason string) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   "forbidden",
		Message: "You do not have permission to access this resource.",
	})
}

// NotFoundError returns a generic not found error
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: "The requested resource was not found.",
	})
}

// ConflictError returns a generic conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message, // Message is safe to expose (e.g., "User already exists")
	})
}

// GoneError reports a resource whose validity window has elapsed
func GoneError(c echo.Context, message string) error {
	return c.JSON(http.StatusGone, models.ErrorResponse{
		Error:   "expired",
		Message: message,
	})
}

// TooManyRequestsError reports an exhausted quota
func TooManyRequestsError(c echo.Context, message string) error {
	return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
		Error:   "quota_exceeded",
		Message: message,
	})
}

// DomainError maps a service-layer error onto the matching HTTP response.
// Unknown errors fall through to InternalError.
func DomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, referral.ErrInvalidFormat):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_code_format",
			Message: "Referral code format is invalid.",
		})
	case errors.Is(err, referral.ErrCodeNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "code_not_found",
			Message: "Referral code not found.",
		})
	case errors.Is(err, referral.ErrReferrerMissing):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "referrer_missing",
			Message: "Referral code is no longer valid.",
		})
	case errors.Is(err, referral.ErrAlreadyReferred):
		return ConflictError(c, "This email has already been referred.")
	case errors.Is(err, referral.ErrSelfReferral):
		return c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "self_referral",
			Message: "You cannot redeem your own referral code.",
		})
	case errors.Is(err, referral.ErrNotFoundOrCompleted):
		return NotFoundError(c, "referral")
	case errors.Is(err, referral.ErrExpired):
		return GoneError(c, "Referral has expired.")
	case errors.Is(err, quota.ErrQuotaExceeded):
		return TooManyRequestsError(c, "Daily email quota exceeded. Try again tomorrow.")
	default:
		return InternalError(c, err)
	}
}
