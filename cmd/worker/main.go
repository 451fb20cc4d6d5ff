package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-queue-api/internal/config"
	"github.com/jwalitptl/clinic-queue-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-queue-api/internal/service/event"
	queueService "github.com/jwalitptl/clinic-queue-api/internal/service/queue"
	"github.com/jwalitptl/clinic-queue-api/internal/worker"
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

	m := metrics.NewMetrics("clinic_queue", "worker")
	emitter := event.NewEmitter(broker, logg, m)

	baseRepo := postgres.NewBaseRepository(db)
	appointmentRepo := postgres.NewAppointmentRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	providerRepo := postgres.NewProviderRepository(db)
	settingsRepo := postgres.NewClinicSettingsRepository(db, cfg.Clinic.CancellationWindowHours, cfg.Clinic.NoShowGraceMinutes)

	queueSvc := queueService.NewService(&baseRepo, queueRepo, appointmentRepo, providerRepo, emitter, m)

	sweeper := worker.NewNoShowSweeper(
		appointmentRepo,
		settingsRepo,
		queueSvc,
		cfg.Clinic.NoShowGraceMinutes,
		cfg.Worker.NoShowSweepInterval,
		logg,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)
	logg.Info("no-show sweeper started", "interval", cfg.Worker.NoShowSweepInterval)

	setupOpsServer(logg, db)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logg.Info("worker shutting down")
	cancel()
}

// setupOpsServer serves liveness, readiness and metrics for the worker
// process on its own port.
func setupOpsServer(logg *logger.Logger, db interface{ Ping() error }) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			logg.Error(err, "ops server failed")
			os.Exit(1)
		}
	}()
}
