package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/hivebridge/hivebridge/pkg/api/errors"
	"github.com/hivebridge/hivebridge/pkg/auth"
	"github.com/hivebridge/hivebridge/pkg/email"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/referral"
)

// ReferralHandler handles referral operations
type ReferralHandler struct {
	service    *referral.Service
	email      *email.Service
	privileges *auth.PrivilegeChecker
	metrics    *metrics.Metrics
	validator  *validator.Validate
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(service *referral.Service, emailService *email.Service, privileges *auth.PrivilegeChecker, m *metrics.Metrics) *ReferralHandler {
	return &ReferralHandler{
		service:    service,
		email:      emailService,
		privileges: privileges,
		metrics:    m,
		validator:  validator.New(),
	}
}

// GetReferralCode godoc
// @Summary Get user's referral code
// @Description Get the user's referral code for sharing (auto-generates if none exists)
// @Tags Referrals
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/referrals/code [get]
func (h *ReferralHandler) GetReferralCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID := c.Get("user_id").(int)

	code, isNew, err := h.service.Issue(ctx, userID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	if isNew && h.metrics != nil {
		h.metrics.RecordCodeIssued()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"code":      code,
		"share_url": h.email.ShareURL(code),
		"is_new":    isNew,
	})
}

// ValidateReferralCode godoc
// @Summary Validate a referral code
// @Description Check if a referral code is well-formed, exists and is active
// @Tags Referrals
// @Produce json
// @Param code query string true "Referral code to validate"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/referrals/validate [get]
func (h *ReferralHandler) ValidateReferralCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "missing_code",
			Message: "referral code is required",
		})
	}

	valid, err := h.service.ValidateCode(ctx, code)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid": valid,
	})
}

// ApplyReferral godoc
// @Summary Redeem a referral code
// @Description Record the use of a referral code by a prospective signup
// @Tags Referrals
// @Accept json
// @Produce json
// @Param request body models.ApplyReferralRequest true "Code and email"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /api/v1/referrals/apply [post]
func (h *ReferralHandler) ApplyReferral(c echo.Context) error {
	var req models.ApplyReferralRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	// Anonymous callers apply with no account; authenticated ones are
	// checked against the code owner
	applyingUserID, _ := c.Get("user_id").(int)

	referralID, referrerID, err := h.service.Apply(ctx, req.Code, req.Email, applyingUserID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordReferralApplied(false)
		}
		return apierrors.DomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordReferralApplied(true)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"referral_id": referralID,
		"referrer_id": referrerID,
		"status":      models.ReferralStatusPending,
	})
}

// GetReferralStats godoc
// @Summary Get referral statistics
// @Description Get statistics about user's referrals and premium progress
// @Tags Referrals
// @Produce json
// @Success 200 {object} referral.ReferralStats
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/referrals/stats [get]
func (h *ReferralHandler) GetReferralStats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID := c.Get("user_id").(int)

	stats, err := h.service.Stats(ctx, userID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, stats)
}

// ListReferrals godoc
// @Summary List user's referrals
// @Description Get a list of all referrals sent by the user, newest first
// @Tags Referrals
// @Produce json
// @Success 200 {array} models.Referral
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/referrals/history [get]
func (h *ReferralHandler) ListReferrals(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID := c.Get("user_id").(int)

	referrals, err := h.service.ListReferrals(ctx, userID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, referrals)
}

// CompleteReferral godoc
// @Summary Complete a referral
// @Description Mark a pending referral as completed and credit the referrer. Elevated callers only.
// @Tags Referrals
// @Produce json
// @Param id path int true "Referral ID"
// @Success 200 {object} models.Referral
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 410 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/referrals/{id}/complete [post]
func (h *ReferralHandler) CompleteReferral(c echo.Context) error {
	if !h.callerElevated(c) {
		return apierrors.ForbiddenError(c, "requires elevated tier")
	}

	referralID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_id",
			Message: "referral id must be an integer",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ref, err := h.service.Complete(ctx, referralID)
	if err != nil {
		return apierrors.DomainError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordReferralCompleted()
	}

	return c.JSON(http.StatusOK, ref)
}

// ExpireReferrals godoc
// @Summary Expire stale referrals
// @Description Run the expiry sweep immediately. Elevated callers only.
// @Tags Referrals
// @Produce json
// @Success 200 {object} map[string]int
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/admin/referrals/expire [post]
func (h *ReferralHandler) ExpireReferrals(c echo.Context) error {
	if !h.callerElevated(c) {
		return apierrors.ForbiddenError(c, "requires elevated tier")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	count, err := h.service.ExpireStale(ctx)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordReferralsExpired(count)
	}

	return c.JSON(http.StatusOK, map[string]int{
		"expired": count,
	})
}

func (h *ReferralHandler) callerElevated(c echo.Context) bool {
	email, _ := c.Get("user_email").(string)
	tier, _ := c.Get("user_tier").(string)
	return h.privileges.IsElevated(email, tier)
}
