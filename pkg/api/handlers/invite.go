package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/hivebridge/hivebridge/pkg/api/errors"
	"github.com/hivebridge/hivebridge/pkg/email"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/quota"
	"github.com/hivebridge/hivebridge/pkg/referral"
	"github.com/hivebridge/hivebridge/pkg/store"
)

// InviteHandler handles invitation email sending and quota reporting
type InviteHandler struct {
	users     store.UserStore
	referrals *referral.Service
	quotas    *quota.Service
	email     *email.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(users store.UserStore, referrals *referral.Service, quotas *quota.Service, emailService *email.Service, m *metrics.Metrics) *InviteHandler {
	return &InviteHandler{
		users:     users,
		referrals: referrals,
		quotas:    quotas,
		email:     emailService,
		metrics:   m,
		validator: validator.New(),
	}
}

// SendInvite godoc
// @Summary Send a referral invitation email
// @Description Email the caller's referral code to a friend, consuming one send from the daily quota
// @Tags Invites
// @Accept json
// @Produce json
// @Param request body models.InviteRequest true "Recipient email"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/invites [post]
func (h *InviteHandler) SendInvite(c echo.Context) error {
	var req models.InviteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	userID := c.Get("user_id").(int)

	u, err := h.users.UserByID(ctx, userID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	code, _, err := h.referrals.Issue(ctx, userID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	// The quota is consumed before the send; a failed send does not refund
	// it
	if err := h.quotas.Consume(ctx, userID, 1); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			if h.metrics != nil {
				h.metrics.RecordQuotaDenial()
			}
			return apierrors.DomainError(c, err)
		}
		return apierrors.InternalError(c, err)
	}

	inviteID, err := h.email.SendReferralInvite(req.Email, u.Name, code)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "send_failed",
			Message: "Failed to send invitation email",
		})
	}

	if h.metrics != nil {
		h.metrics.RecordInviteSent()
	}

	return c.JSON(http.StatusOK, map[string]string{
		"invite_id": inviteID,
		"message":   "Invitation sent",
	})
}

// GetQuota godoc
// @Summary Get the caller's email quota
// @Description Current usage, limit and reset time of the daily invitation allowance
// @Tags Invites
// @Produce json
// @Success 200 {object} quota.Usage
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/invites/quota [get]
func (h *InviteHandler) GetQuota(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID := c.Get("user_id").(int)

	usage, err := h.quotas.Usage(ctx, userID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, usage)
}
