package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Business metrics
	ReferralCodesIssued prometheus.Counter
	ReferralsApplied    *prometheus.CounterVec
	ReferralsCompleted  prometheus.Counter
	ReferralsExpired    prometheus.Counter
	PremiumGrants       prometheus.Counter
	InvitesSent         prometheus.Counter
	QuotaDenials        prometheus.Counter
	UsersRegistered     prometheus.Counter
	LoginAttempts       *prometheus.CounterVec
	AdmissionDenials    *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000},
			},
			[]string{"method", "path"},
		),

		// Business metrics
		ReferralCodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "referral_codes_issued_total",
			Help: "Total number of referral codes issued",
		}),
		ReferralsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referrals_applied_total",
				Help: "Total number of referral code applications",
			},
			[]string{"status"}, // accepted, rejected
		),
		ReferralsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "referrals_completed_total",
			Help: "Total number of referrals completed",
		}),
		ReferralsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "referrals_expired_total",
			Help: "Total number of referrals expired by the sweeper",
		}),
		PremiumGrants: promauto.NewCounter(prometheus.CounterOpts{
			Name: "premium_grants_total",
			Help: "Total number of premium grants earned through referrals",
		}),
		InvitesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "invites_sent_total",
			Help: "Total number of invitation emails sent",
		}),
		QuotaDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "email_quota_denials_total",
			Help: "Total number of sends denied by the daily email quota",
		}),
		UsersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of users registered",
		}),
		LoginAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		AdmissionDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_denials_total",
				Help: "Total number of requests denied by the rate limiter",
			},
			[]string{"tier"}, // standard, elevated
		),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
	}

	return m
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			path := c.Path() // Use route pattern, not actual path (e.g., /api/v1/referrals/:id)

			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			err := next(c)

			status := c.Response().Status
			duration := time.Since(start).Seconds()

			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, strconv.Itoa(status)).Observe(duration)
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordCodeIssued increments the referral codes issued counter
func (m *Metrics) RecordCodeIssued() {
	m.ReferralCodesIssued.Inc()
}

// RecordReferralApplied increments the referral applications counter
func (m *Metrics) RecordReferralApplied(accepted bool) {
	status := "rejected"
	if accepted {
		status = "accepted"
	}
	m.ReferralsApplied.WithLabelValues(status).Inc()
}

// RecordReferralCompleted increments the referrals completed counter
func (m *Metrics) RecordReferralCompleted() {
	m.ReferralsCompleted.Inc()
}

// RecordReferralsExpired adds to the expired referrals counter
func (m *Metrics) RecordReferralsExpired(count int) {
	m.ReferralsExpired.Add(float64(count))
}

// RecordPremiumGrant increments the premium grants counter
func (m *Metrics) RecordPremiumGrant() {
	m.PremiumGrants.Inc()
}

// RecordInviteSent increments the invites sent counter
func (m *Metrics) RecordInviteSent() {
	m.InvitesSent.Inc()
}

// RecordQuotaDenial increments the quota denials counter
func (m *Metrics) RecordQuotaDenial() {
	m.QuotaDenials.Inc()
}

// RecordUserRegistered increments the users registered counter
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordLoginAttempt increments the login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordAdmissionDenial increments the rate-limit denials counter
func (m *Metrics) RecordAdmissionDenial(tier string) {
	m.AdmissionDenials.WithLabelValues(tier).Inc()
}

// RecordCacheHit increments the cache hits counter
func (m *Metrics) RecordCacheHit(cacheType string) {
	m.CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss increments the cache misses counter
func (m *Metrics) RecordCacheMiss(cacheType string) {
	m.CacheMisses.WithLabelValues(cacheType).Inc()
}
