package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	apierrors "github.com/hivebridge/hivebridge/pkg/api/errors"
	"github.com/hivebridge/hivebridge/pkg/premium"
)

// PremiumHandler handles premium status endpoints
type PremiumHandler struct {
	service *premium.Service
}

// NewPremiumHandler creates a new premium handler
func NewPremiumHandler(service *premium.Service) *PremiumHandler {
	return &PremiumHandler{service: service}
}

// GetStatus godoc
// @Summary Get premium status
// @Description Reward progress and current premium grant of the caller
// @Tags Premium
// @Produce json
// @Success 200 {object} premium.Status
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/v1/premium/status [get]
func (h *PremiumHandler) GetStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID := c.Get("user_id").(int)

	status, err := h.service.Status(ctx, userID)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusOK, status)
}
