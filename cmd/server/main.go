package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"babyofficehours/internal/config"
	"babyofficehours/internal/docstore"
	"babyofficehours/internal/handlers"
	"babyofficehours/internal/metrics"
	"babyofficehours/internal/realtime"
	"babyofficehours/internal/remote"
	"babyofficehours/internal/repository"
	"babyofficehours/internal/security"
	"babyofficehours/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.SetFormatter(&log.JSONFormatter{})
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid LOG_LEVEL, using info")
		level = log.InfoLevel
	}
	if cfg.Debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := handlers.NewStartupStatus()

	// Document store
	status.SetCurrentStep(handlers.StepStore)
	store, err := repository.OpenStore(cfg, remote.Collections...)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore(store)
	log.WithField("type", cfg.DatabaseType).Info("Document store established")
	status.CompleteStep(handlers.StepStore)

	// Realtime notifications
	status.SetCurrentStep(handlers.StepNotifier)
	redisClient, err := realtime.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	var (
		notifier    realtime.Notifier
		redisHealth handlers.HealthCheck
	)
	if redisClient != nil {
		notifier = realtime.NewRedisNotifier(redisClient, log.StandardLogger())
		redisHealth = redisClient.Health
		defer redisClient.Close()
		log.Info("Realtime notifications via redis")
	} else {
		notifier = realtime.NewLocalNotifier()
		log.Info("Realtime notifications in process (REDIS_URL not set)")
	}
	defer notifier.Close()
	status.CompleteStep(handlers.StepNotifier)

	// Services
	status.SetCurrentStep(handlers.StepServices)
	m := metrics.New(prometheus.DefaultRegisterer)
	syncService := remote.New(store, notifier,
		remote.WithMetrics(m),
		remote.WithLogger(log.StandardLogger()))
	defer syncService.UnsubscribeAll()

	authService, err := service.NewAuthService(syncService, cfg.JWTSigningKey, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize auth service: %v", err)
	}
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	sessions := handlers.NewSessionRegistry(syncService, log.StandardLogger(), handlers.DefaultSessionIdle)
	defer sessions.Close()
	limiter := security.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	go sessions.Run(ctx)
	go limiter.Run(ctx)
	status.CompleteStep(handlers.StepServices)

	handler := handlers.NewRouter(handlers.Routes{
		Middleware: handlers.NewMiddleware(authService, sessions, limiter, m),
		Auth:       handlers.NewAuthHandler(authService),
		Babies:     handlers.NewBabyHandler(syncService),
		Invites:    handlers.NewInviteHandler(emailService),
		Health:     handlers.NewHealthHandler(status, redisHealth),
		Gatherer:   prometheus.DefaultGatherer,
	})

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	status.CompleteStep(handlers.StepListening)
	status.MarkReady()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("Server failed")
	}

	log.Info("Server shutting down...")
	// Shutdown waits for open event streams
	syncService.UnsubscribeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown incomplete")
	}
}

func closeStore(store docstore.Store) {
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("Failed to close store")
	}
}
