package main

// @title HiveBridge API
// @version 1.0
// @description Referral-driven premium access backend. Invite friends, earn premium.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hivebridge/hivebridge/config"
	"github.com/hivebridge/hivebridge/pkg/api/handlers"
	"github.com/hivebridge/hivebridge/pkg/auth"
	"github.com/hivebridge/hivebridge/pkg/cache"
	"github.com/hivebridge/hivebridge/pkg/database"
	"github.com/hivebridge/hivebridge/pkg/email"
	"github.com/hivebridge/hivebridge/pkg/jobs"
	"github.com/hivebridge/hivebridge/pkg/logger"
	"github.com/hivebridge/hivebridge/pkg/metrics"
	custommiddleware "github.com/hivebridge/hivebridge/pkg/middleware"
	"github.com/hivebridge/hivebridge/pkg/premium"
	"github.com/hivebridge/hivebridge/pkg/quota"
	"github.com/hivebridge/hivebridge/pkg/referral"
	"github.com/hivebridge/hivebridge/pkg/store"
)

func main() {
	// Load .env in development; production sets real env vars
	_ = godotenv.Load()

	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	appLog := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize database
	db, err := database.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Initialize services
	st := store.NewGormStore(db.DB)
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)
	privileges := auth.NewPrivilegeChecker(cfg.AdminEmails)

	premiumService := premium.NewService(st, redisClient, prometheusMetrics, appLog, premium.Config{
		Threshold:     cfg.PremiumThreshold,
		GrantValidity: time.Duration(cfg.PremiumValidityMonths) * 30 * 24 * time.Hour,
	})
	referralService := referral.NewService(st, premiumService, redisClient, prometheusMetrics, appLog, referral.Config{
		ValidityPeriod:   time.Duration(cfg.ReferralValidityDays) * 24 * time.Hour,
		PremiumThreshold: cfg.PremiumThreshold,
	})
	quotaService := quota.NewService(st, premiumService, appLog, quota.Config{
		StandardDaily: cfg.QuotaStandardDaily,
		PremiumDaily:  cfg.QuotaPremiumDaily,
	})
	emailService := email.NewService(
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.FrontendURL,
		cfg.SendGridAPIKey,
	)

	// Initialize cron manager for lifecycle jobs
	cronManager := jobs.NewCronManager(referralService, quotaService, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Rate limiters: a coarse per-IP limiter in front, the two-tier
	// fixed-window admission controller behind it
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	admission := custommiddleware.NewAdmissionController(
		time.Duration(cfg.AdmissionWindowMinutes)*time.Minute,
		cfg.AdmissionStandardMax,
		cfg.AdmissionElevatedMax,
		prometheusMetrics,
	)

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true, // Repanic after capturing to let the Recover middleware handle it
		}))
	}

	e.Use(prometheusMetrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))

	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public, not rate-limit accounted)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "HiveBridge API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		if _, err := redisClient.Redis.Ping(c.Request().Context()).Result(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(st, cfg, tokenBlacklist, referralService, premiumService, prometheusMetrics)
	referralHandler := handlers.NewReferralHandler(referralService, emailService, privileges, prometheusMetrics)
	inviteHandler := handlers.NewInviteHandler(st, referralService, quotaService, emailService, prometheusMetrics)
	premiumHandler := handlers.NewPremiumHandler(premiumService)

	v1 := e.Group("/api/v1")

	// Public routes: admission control only, standard tier
	public := v1.Group("")
	public.Use(admission.Middleware())
	{
		public.GET("/ping", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
		})

		public.POST("/auth/register", authHandler.Register)
		public.POST("/auth/login", authHandler.Login)

		public.GET("/referrals/validate", referralHandler.ValidateReferralCode)
		public.POST("/referrals/apply", referralHandler.ApplyReferral)
	}

	// Protected routes: JWT first so the admission controller sees the
	// caller's tier
	protected := v1.Group("")
	protected.Use(custommiddleware.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist))
	protected.Use(admission.Middleware())
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/logout", authHandler.Logout)

		referralGroup := protected.Group("/referrals")
		{
			referralGroup.GET("/code", referralHandler.GetReferralCode)
			referralGroup.GET("/stats", referralHandler.GetReferralStats)
			referralGroup.GET("/history", referralHandler.ListReferrals)
			referralGroup.POST("/:id/complete", referralHandler.CompleteReferral)
		}

		inviteGroup := protected.Group("/invites")
		{
			inviteGroup.POST("", inviteHandler.SendInvite)
			inviteGroup.GET("/quota", inviteHandler.GetQuota)
		}

		protected.GET("/premium/status", premiumHandler.GetStatus)

		// Admin routes (elevated callers only, enforced in handlers)
		adminGroup := protected.Group("/admin")
		{
			adminGroup.POST("/referrals/expire", referralHandler.ExpireReferrals)
		}
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 HiveBridge API starting on %s", address)
	log.Printf("📝 Log level: %s, Log format: %s", cfg.LogLevel, cfg.LogFormat)
	log.Printf("🔐 JWT expiration: %d hours", cfg.JWTExpirationHours)
	log.Printf("🛡️  Rate limiting: %d req/min global, admission window %dm (standard %d / elevated %d)",
		cfg.RateLimitRequestsPerMinute, cfg.AdmissionWindowMinutes, cfg.AdmissionStandardMax, cfg.AdmissionElevatedMax)
	log.Printf("🎁 Referrals: %d days validity, premium at %d completions",
		cfg.ReferralValidityDays, cfg.PremiumThreshold)
	log.Printf("📬 Email quota: %d/day standard, %d/day premium",
		cfg.QuotaStandardDaily, cfg.QuotaPremiumDaily)

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
