package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
	"github.com/jwalitptl/clinic-queue-api/pkg/logger"
)

// NoShowMarker is the slice of the queue service the sweeper needs.
type NoShowMarker interface {
	MarkNoShow(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error)
}

// NoShowSweeper periodically marks scheduled appointments whose slot
// passed longer ago than the clinic's grace period as no-shows. Sweeps
// are idempotent: an appointment already transitioned by a concurrent
// sweep or a manual action is skipped.
type NoShowSweeper struct {
	appointments  repository.AppointmentRepository
	settings      repository.ClinicSettingsRepository
	queue         NoShowMarker
	defaultGrace  time.Duration
	sweepInterval time.Duration
	logger        *logger.Logger
}

func NewNoShowSweeper(
	appointments repository.AppointmentRepository,
	settings repository.ClinicSettingsRepository,
	queue NoShowMarker,
	defaultGraceMinutes int,
	sweepInterval time.Duration,
	logger *logger.Logger,
) *NoShowSweeper {
	return &NoShowSweeper{
		appointments:  appointments,
		settings:      settings,
		queue:         queue,
		defaultGrace:  time.Duration(defaultGraceMinutes) * time.Minute,
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

func (w *NoShowSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error(err, "no-show sweep failed")
			}
		}
	}
}

func (w *NoShowSweeper) sweep(ctx context.Context) error {
	now := time.Now()
	stale, err := w.appointments.ListStaleScheduled(ctx, now.Add(-w.defaultGrace))
	if err != nil {
		return err
	}

	marked := 0
	for _, apt := range stale {
		grace := w.graceFor(ctx, apt.ClinicID)
		if apt.DateTime().Add(grace).After(now) {
			continue
		}

		if _, err := w.queue.MarkNoShow(ctx, apt.ID); err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidState) {
				continue
			}
			w.logger.Error(err, "failed to mark no-show", "appointment_id", apt.ID)
			continue
		}
		marked++
	}

	if marked > 0 {
		w.logger.Info("no-show sweep complete", "marked", marked, "candidates", len(stale))
	}
	return nil
}

// graceFor reads the clinic's grace period, falling back to the worker
// default when settings cannot be loaded.
func (w *NoShowSweeper) graceFor(ctx context.Context, clinicID uuid.UUID) time.Duration {
	settings, err := w.settings.Get(ctx, clinicID)
	if err != nil {
		return w.defaultGrace
	}
	return time.Duration(settings.NoShowGraceMinutes) * time.Minute
}
