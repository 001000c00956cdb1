package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/remindbot/remindbot/internal/api"
	"github.com/remindbot/remindbot/internal/auth"
	"github.com/remindbot/remindbot/internal/circuitbreaker"
	"github.com/remindbot/remindbot/internal/config"
	"github.com/remindbot/remindbot/internal/db"
	"github.com/remindbot/remindbot/internal/dispatch"
	"github.com/remindbot/remindbot/internal/metrics"
	"github.com/remindbot/remindbot/internal/observ"
	"github.com/remindbot/remindbot/internal/redis"
	"github.com/remindbot/remindbot/internal/scheduler"
	"github.com/remindbot/remindbot/internal/sms"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting remindbot server",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("sms_provider", cfg.SMSProvider),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	// Initialize repository
	repo := db.NewRepository(database, logger)

	// Initialize Redis for rate limiting and the dispatch run lock. The
	// service works without it.
	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	redisClient, err := redis.New(ctx, redisConfig, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting and run lock disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
		redisClient = nil
	}

	var rateLimiter *redis.RateLimiter
	var runLock *redis.RunLock
	if redisClient != nil {
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  cfg.RateLimitPerMinute,
			Window: 1 * time.Minute,
		})
		runLock = redis.NewRunLock(redisClient, logger, 10*time.Minute)
		defer redisClient.Close()
	}

	// Select SMS gateway by provider
	var gateway sms.Gateway
	switch cfg.SMSProvider {
	case "textbelt":
		gateway = sms.NewTextbeltGateway(sms.TextbeltConfig{
			APIKey:  cfg.TextbeltAPIKey,
			BaseURL: cfg.TextbeltURL,
		}, logger)
	case "sns":
		gateway, err = sms.NewSNSGateway(ctx, sms.SNSConfig{Region: cfg.SNSRegion}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SNS gateway: %w", err)
		}
	default:
		gateway = sms.NewLogGateway(logger)
	}

	// Wrap the gateway in a circuit breaker so a down provider fails fast
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:                gateway.Name(),
		MaxFailures:         5,
		RecoveryTimeout:     30 * time.Second,
		HalfOpenMaxRequests: 1,
	}, logger)
	protected := circuitbreaker.Protect(gateway, breaker)

	logger.Info("sms gateway initialized", zap.String("provider", gateway.Name()))

	// Dispatch engine
	dispatcher := dispatch.New(repo, repo, protected, dispatch.Config{
		OverdueWindowDays: cfg.OverdueWindowDays,
	}, logger)

	// Hourly scheduler
	sched := scheduler.New(dispatcher, runLock, scheduler.Config{
		Interval: cfg.DispatchInterval,
	}, logger)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	go sched.Start(schedCtx)

	// Report pool usage to the metrics endpoint
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-schedCtx.Done():
				return
			case <-ticker.C:
				metrics.SetDBConnections(int(database.Pool().Stat().AcquiredConns()))
			}
		}
	}()

	// Admin auth (no-op when ADMIN_PASSWORD_HASH is unset)
	authSvc := auth.NewService(auth.Config{
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    cfg.JWTSecret,
		SessionHours: cfg.SessionHours,
	}, logger)

	if !authSvc.Enabled() {
		logger.Warn("admin auth disabled, API is unauthenticated")
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	// API routes
	handler := api.NewHandler(logger, repo, dispatcher, protected, authSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.IPKeyFunc))

		r.Post("/auth/login", handler.Login)
		r.Get("/auth/verify", handler.VerifyToken)

		r.Group(func(r chi.Router) {
			r.Use(authSvc.Middleware)

			r.Post("/contacts", handler.CreateContact)
			r.Get("/contacts", handler.ListContacts)
			r.Get("/contacts/{id}", handler.GetContact)
			r.Put("/contacts/{id}", handler.UpdateContact)
			r.Delete("/contacts/{id}", handler.DeleteContact)

			r.Post("/reminders", handler.CreateReminder)
			r.Get("/reminders", handler.ListReminders)
			r.Get("/reminders/{id}", handler.GetReminder)
			r.Put("/reminders/{id}", handler.UpdateReminder)
			r.Delete("/reminders/{id}", handler.DeleteReminder)
			r.Post("/reminders/{id}/send", handler.SendReminder)
			r.Get("/reminders/{id}/messages", handler.ListReminderMessages)

			r.Get("/messages", handler.ListMessages)
			r.Put("/messages/{id}/paid", handler.SetMessagePaid)
			r.Get("/stats/dashboard", handler.GetDashboardStats)

			r.Post("/dispatch/run", handler.TriggerDispatch)

			r.Post("/sms/test", handler.TestSMS)
			r.Get("/sms/status", handler.SMSStatus)
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		schedCancel()

		// Give outstanding requests 10 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("server stopped gracefully")
	}

	return nil
}
