package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/hivebridge/hivebridge/config"
	apierrors "github.com/hivebridge/hivebridge/pkg/api/errors"
	"github.com/hivebridge/hivebridge/pkg/auth"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/hivebridge/hivebridge/pkg/premium"
	"github.com/hivebridge/hivebridge/pkg/referral"
	"github.com/hivebridge/hivebridge/pkg/store"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users     store.UserStore
	config    *config.Config
	blacklist *auth.TokenBlacklist
	referrals *referral.Service
	premium   *premium.Service
	metrics   *metrics.Metrics
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users store.UserStore, cfg *config.Config, blacklist *auth.TokenBlacklist, referrals *referral.Service, prem *premium.Service, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{
		users:     users,
		config:    cfg,
		blacklist: blacklist,
		referrals: referrals,
		premium:   prem,
		metrics:   m,
		validator: validator.New(),
	}
}

// Register godoc
// @Summary Register a new user
// @Description Create a new user account, optionally redeeming a referral code
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration data"
// @Success 201 {object} models.AuthResponse "User registered successfully"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 409 {object} models.ErrorResponse "User already exists"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	newUser := &models.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		Name:         req.Name,
		Tier:         models.TierStandard,
	}

	if err := h.users.CreateUser(ctx, newUser); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{
				Error:   "user_exists",
				Message: "User with this email already exists",
			})
		}
		return apierrors.DatabaseError(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordUserRegistered()
	}

	// A bad referral code never blocks registration; the signup simply
	// proceeds unattributed
	if req.ReferralCode != "" {
		if _, _, err := h.referrals.Apply(ctx, req.ReferralCode, newUser.Email, newUser.ID); err != nil {
			c.Logger().Warnf("referral code %q not applied for user %d: %v", req.ReferralCode, newUser.ID, err)
			if h.metrics != nil {
				h.metrics.RecordReferralApplied(false)
			}
		} else if h.metrics != nil {
			h.metrics.RecordReferralApplied(true)
		}
	}

	token, err := auth.GenerateJWT(newUser.ID, newUser.Email, newUser.Tier, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	return c.JSON(http.StatusCreated, models.AuthResponse{
		Token: token,
		User: &models.UserInfo{
			ID:    newUser.ID,
			Email: newUser.Email,
			Name:  newUser.Name,
			Tier:  newUser.Tier,
		},
	})
}

// Login godoc
// @Summary Login user
// @Description Authenticate user with email and password, returns JWT token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.AuthResponse "Login successful"
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.users.UserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if h.metrics != nil {
				h.metrics.RecordLoginAttempt(false)
			}
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Invalid email or password",
			})
		}
		return apierrors.DatabaseError(c, err)
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		if h.metrics != nil {
			h.metrics.RecordLoginAttempt(false)
		}
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password",
		})
	}

	if h.metrics != nil {
		h.metrics.RecordLoginAttempt(true)
	}

	token, err := auth.GenerateJWT(u.ID, u.Email, u.Tier, h.config.JWTSecret, h.config.JWTExpirationHours)
	if err != nil {
		return apierrors.InternalError(c, err)
	}

	isPremium, _ := h.premium.HasPremiumAccess(ctx, u.ID)

	return c.JSON(http.StatusOK, models.AuthResponse{
		Token: token,
		User: &models.UserInfo{
			ID:      u.ID,
			Email:   u.Email,
			Name:    u.Name,
			Tier:    u.Tier,
			Premium: isPremium,
		},
	})
}

// Me returns the current user's information
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(int)
	if !ok {
		return apierrors.UnauthorizedError(c, "missing user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.NotFoundError(c, "user")
		}
		return apierrors.DatabaseError(c, err)
	}

	isPremium, _ := h.premium.HasPremiumAccess(ctx, u.ID)

	return c.JSON(http.StatusOK, models.UserInfo{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.Name,
		Tier:    u.Tier,
		Premium: isPremium,
	})
}

// Logout revokes the current JWT token
func (h *AuthHandler) Logout(c echo.Context) error {
	token, ok := c.Get("token").(string)
	if !ok || token == "" {
		return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Error:   "missing_token",
			Message: "No token found in request",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// Blacklist TTL matches the token lifetime
	expiration := time.Duration(h.config.JWTExpirationHours) * time.Hour
	if err := h.blacklist.Add(ctx, token, expiration); err != nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "logout_error",
			Message: "Failed to revoke token",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Successfully logged out",
	})
}
