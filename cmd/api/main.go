package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-queue-api/internal/config"
	appointmentHandler "github.com/jwalitptl/clinic-queue-api/internal/handler/appointment"
	healthHandler "github.com/jwalitptl/clinic-queue-api/internal/handler/health"
	queueHandler "github.com/jwalitptl/clinic-queue-api/internal/handler/queue"
	scheduleHandler "github.com/jwalitptl/clinic-queue-api/internal/handler/schedule"
	"github.com/jwalitptl/clinic-queue-api/internal/middleware"
	"github.com/jwalitptl/clinic-queue-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-queue-api/internal/router"
	appointmentService "github.com/jwalitptl/clinic-queue-api/internal/service/appointment"
	"github.com/jwalitptl/clinic-queue-api/internal/service/event"
	queueService "github.com/jwalitptl/clinic-queue-api/internal/service/queue"
	scheduleService "github.com/jwalitptl/clinic-queue-api/internal/service/schedule"
	"github.com/jwalitptl/clinic-queue-api/pkg/logger"
	"github.com/jwalitptl/clinic-queue-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-queue-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logg := logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Logger.Level),
		Pretty: cfg.Logger.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("clinic_queue", "api")
	emitter := event.NewEmitter(broker, logg, m)

	baseRepo := postgres.NewBaseRepository(db)
	txManager := &baseRepo
	appointmentRepo := postgres.NewAppointmentRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	providerRepo := postgres.NewProviderRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	settingsRepo := postgres.NewClinicSettingsRepository(db, cfg.Clinic.CancellationWindowHours, cfg.Clinic.NoShowGraceMinutes)

	queueSvc := queueService.NewService(txManager, queueRepo, appointmentRepo, providerRepo, emitter, m)
	appointmentSvc := appointmentService.NewService(
		txManager,
		appointmentRepo,
		queueRepo,
		providerRepo,
		patientRepo,
		settingsRepo,
		queueSvc,
		emitter,
		m,
	)
	scheduleSvc := scheduleService.NewService(scheduleRepo, appointmentRepo)

	r := router.NewRouter(
		appointmentHandler.NewHandler(appointmentSvc),
		queueHandler.NewHandler(queueSvc),
		scheduleHandler.NewHandler(scheduleSvc),
		healthHandler.NewHandler(db, broker),
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			RequestTimeout:   cfg.Server.RequestTimeout,
			CORSConfig:       corsConfig(cfg),
			MetricsPrefix:    "clinic_queue_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	logg.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logg.Info("server exited properly")
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		c.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	if len(cfg.CORS.AllowedMethods) > 0 {
		c.AllowMethods = cfg.CORS.AllowedMethods
	}
	if len(cfg.CORS.AllowedHeaders) > 0 {
		c.AllowHeaders = cfg.CORS.AllowedHeaders
	}
	return c
}
