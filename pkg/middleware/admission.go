package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hivebridge/hivebridge/pkg/metrics"
	"github.com/hivebridge/hivebridge/pkg/models"
	"github.com/labstack/echo/v4"
)

// Tier selects the admission profile for a caller
type Tier string

const (
	TierStandard Tier = "standard"
	TierElevated Tier = "elevated"
)

// TierLimits defines the fixed window applied to a tier
type TierLimits struct {
	Window      time.Duration
	MaxRequests int
}

// AdmissionResult is the outcome of an admission check. Denial is a value,
// never an error.
type AdmissionResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// windowRecord tracks one client identity's current fixed window
type windowRecord struct {
	count   int
	resetAt time.Time
}

// AdmissionController is a fixed-window rate limiter keyed by client
// identity. State is process-local: created at startup, never persisted.
// Under horizontal scaling the aggregate limit is per-instance.
type AdmissionController struct {
	mu      sync.Mutex
	windows map[string]*windowRecord
	limits  map[Tier]TierLimits
	metrics *metrics.Metrics

	now func() time.Time
}

// NewAdmissionController creates a controller with the given per-tier
// window and limits. m may be nil.
func NewAdmissionController(window time.Duration, standardMax, elevatedMax int, m *metrics.Metrics) *AdmissionController {
	ac := &AdmissionController{
		windows: make(map[string]*windowRecord),
		limits: map[Tier]TierLimits{
			TierStandard: {Window: window, MaxRequests: standardMax},
			TierElevated: {Window: window, MaxRequests: elevatedMax},
		},
		metrics: m,
		now:     time.Now,
	}

	// Drop stale windows every few minutes
	go ac.cleanupWindows()

	return ac
}

// Check admits or denies one request for the given identity and tier
func (ac *AdmissionController) Check(identity string, tier Tier) AdmissionResult {
	limits, ok := ac.limits[tier]
	if !ok {
		limits = ac.limits[TierStandard]
	}

	now := ac.now()

	ac.mu.Lock()
	defer ac.mu.Unlock()

	rec, exists := ac.windows[identity]
	if !exists || !now.Before(rec.resetAt) {
		rec = &windowRecord{count: 1, resetAt: now.Add(limits.Window)}
		ac.windows[identity] = rec
		return AdmissionResult{Allowed: true, Remaining: limits.MaxRequests - 1, ResetAt: rec.resetAt}
	}

	if rec.count >= limits.MaxRequests {
		return AdmissionResult{Allowed: false, Remaining: 0, ResetAt: rec.resetAt}
	}

	rec.count++
	return AdmissionResult{Allowed: true, Remaining: limits.MaxRequests - rec.count, ResetAt: rec.resetAt}
}

// cleanupWindows removes expired windows every 5 minutes
func (ac *AdmissionController) cleanupWindows() {
	for {
		time.Sleep(5 * time.Minute)

		now := ac.now()

		ac.mu.Lock()
		for identity, rec := range ac.windows {
			if !now.Before(rec.resetAt) {
				delete(ac.windows, identity)
			}
		}
		ac.mu.Unlock()
	}
}

// Middleware creates an Echo middleware enforcing admission control.
// The tier comes from the user_tier context value when an upstream auth
// middleware has set it; unauthenticated requests get the standard tier.
func (ac *AdmissionController) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = c.Request().RemoteAddr
			}

			identity := ResolveIdentity(c.Request().Header.Get("Authorization"), ip)

			tier := TierStandard
			if t, ok := c.Get("user_tier").(string); ok && Tier(t) == TierElevated {
				tier = TierElevated
			}

			result := ac.Check(identity, tier)

			res := c.Response()
			res.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			res.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				if ac.metrics != nil {
					ac.metrics.RecordAdmissionDenial(string(tier))
				}
				return c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
					Error:   "rate_limit_exceeded",
					Message: "Too many requests. Please try again later.",
				})
			}

			return next(c)
		}
	}
}
