package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
)

// All repository interfaces in one file
type (
	// TxManager serializes mutations of a provider's daily queue. The
	// callback runs inside a transaction holding an advisory lock scoped
	// to (providerID, date); concurrent callers for the same key block,
	// different keys proceed in parallel.
	TxManager interface {
		WithProviderDayLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(*sqlx.Tx) error) error
	}

	// AppointmentRepository handles appointment persistence. Methods taking
	// a *sqlx.Tx participate in a caller-owned transaction; the caller is
	// responsible for holding the provider-day lock first.
	AppointmentRepository interface {
		Create(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		CountActiveForProviderDate(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time) (int, error)
		HasActiveAtSlot(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time, slot string) (bool, error)
		HasActiveForPatientOnDate(ctx context.Context, tx *sqlx.Tx, patientID uuid.UUID, date time.Time) (bool, error)
		BookedTimes(ctx context.Context, providerID uuid.UUID, date time.Time) ([]string, error)
		ShiftQueueNumbers(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time) error
		UpdateScheduleTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		ListStaleScheduled(ctx context.Context, cutoff time.Time) ([]*model.Appointment, error)
	}

	// QueueRepository handles queue entry persistence and the multi-row
	// position and wait-time rewrites.
	QueueRepository interface {
		Upsert(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error
		Get(ctx context.Context, id uuid.UUID) (*model.QueueEntry, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error)
		Update(ctx context.Context, tx *sqlx.Tx, entry *model.QueueEntry) error
		NextWaiting(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, day time.Time) (*model.QueueEntry, error)
		ListWaiting(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, day time.Time) ([]*model.QueueEntry, error)
		ListForDay(ctx context.Context, providerID uuid.UUID, day time.Time) ([]*model.QueueEntry, error)
		UpdatePositions(ctx context.Context, tx *sqlx.Tx, positions map[uuid.UUID]int) error
		BulkUpdateWaitTimes(ctx context.Context, tx *sqlx.Tx, waits map[uuid.UUID]int) error
		CloseByAppointment(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error
		Stats(ctx context.Context, providerID uuid.UUID, day time.Time) (*model.QueueStats, error)
	}

	ScheduleRepository interface {
		GetActiveForWeekday(ctx context.Context, providerID uuid.UUID, dayOfWeek int) (*model.ProviderSchedule, error)
		Upsert(ctx context.Context, schedule *model.ProviderSchedule) error
		ListForProvider(ctx context.Context, providerID uuid.UUID) ([]*model.ProviderSchedule, error)
		Delete(ctx context.Context, id uuid.UUID) error
		IsDateBlocked(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error)
		BlockDate(ctx context.Context, block *model.BlockedDate) error
		UnblockDate(ctx context.Context, providerID uuid.UUID, date time.Time) error
		ListBlockedDates(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*model.BlockedDate, error)
	}

	ProviderRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	}

	ClinicSettingsRepository interface {
		Get(ctx context.Context, clinicID uuid.UUID) (*model.ClinicSettings, error)
	}
)
