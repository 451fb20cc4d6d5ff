package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/repository"
	"github.com/jwalitptl/clinic-queue-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
	"github.com/jwalitptl/clinic-queue-api/pkg/metrics"
)

// Recalculator rewrites wait-time estimates for a provider's waiting set.
// Implemented by the queue service; called inside the provider-day
// transaction so the rewrite cannot interleave with a concurrent reorder.
type Recalculator interface {
	RecalculateTx(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, slotDurationMinutes int, day time.Time) error
}

type Service struct {
	tx           repository.TxManager
	repo         repository.AppointmentRepository
	queueRepo    repository.QueueRepository
	providerRepo repository.ProviderRepository
	patientRepo  repository.PatientRepository
	settingsRepo repository.ClinicSettingsRepository
	recalc       Recalculator
	emitter      *event.Emitter
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	tx repository.TxManager,
	repo repository.AppointmentRepository,
	queueRepo repository.QueueRepository,
	providerRepo repository.ProviderRepository,
	patientRepo repository.PatientRepository,
	settingsRepo repository.ClinicSettingsRepository,
	recalc Recalculator,
	emitter *event.Emitter,
	m *metrics.Metrics,
) *Service {
	return &Service{
		tx:           tx,
		repo:         repo,
		queueRepo:    queueRepo,
		providerRepo: providerRepo,
		patientRepo:  patientRepo,
		settingsRepo: settingsRepo,
		recalc:       recalc,
		emitter:      emitter,
		metrics:      m,
		now:          time.Now,
	}
}

// Book validates and records an appointment. The queue number read, the
// emergency shift and the insert run as one transaction serialized per
// (provider, date), so concurrent bookings cannot produce duplicate numbers.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.BookingLatency)
		defer timer.ObserveDuration()
	}

	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		return nil, apperrors.PolicyViolation("invalid provider id")
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return nil, apperrors.PolicyViolation("invalid patient id")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperrors.PolicyViolation("invalid date format")
	}

	provider, err := s.validateParticipants(ctx, providerID, patientID, model.AppointmentType(req.Type))
	if err != nil {
		s.countFailure(err)
		return nil, err
	}

	apt := &model.Appointment{
		ID:          uuid.New(),
		PatientID:   patientID,
		ProviderID:  providerID,
		ClinicID:    provider.ClinicID,
		Date:        date,
		Time:        req.Time,
		Type:        model.AppointmentType(req.Type),
		Status:      model.AppointmentStatusScheduled,
		IsEmergency: req.IsEmergency,
	}

	err = s.tx.WithProviderDayLock(ctx, providerID, date, func(tx *sqlx.Tx) error {
		if err := s.validateSlot(ctx, tx, providerID, patientID, date, req.Time); err != nil {
			return err
		}

		number, err := s.assignQueueNumber(ctx, tx, providerID, date, req.IsEmergency)
		if err != nil {
			return err
		}
		apt.QueueNumber = number
		apt.EstimatedWaitMinutes = EstimateWait(number, provider.SlotDurationMinutes)

		return s.repo.Create(ctx, tx, apt)
	})
	if err != nil {
		s.countFailure(err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BookingsTotal.WithLabelValues(string(apt.Type), strconv.FormatBool(apt.IsEmergency)).Inc()
	}
	s.emitter.Emit(ctx, event.ClinicChannel(apt.ClinicID), event.TopicAppointmentCreated, map[string]interface{}{
		"appointment_id": apt.ID,
		"provider_id":    apt.ProviderID,
		"scheduled_date": apt.Date.Format("2006-01-02"),
		"scheduled_time": apt.Time,
		"queue_number":   apt.QueueNumber,
		"is_emergency":   apt.IsEmergency,
	})

	return apt, nil
}

// validateParticipants runs the booking checks that do not touch the
// provider-day state: provider exists, accepts appointments, has an active
// account, shares a clinic with the patient and offers the requested type.
func (s *Service) validateParticipants(ctx context.Context, providerID, patientID uuid.UUID, aptType model.AppointmentType) (*model.Provider, error) {
	provider, err := s.providerRepo.Get(ctx, providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("provider", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	if !provider.IsAcceptingAppointments {
		return nil, apperrors.PolicyViolation("provider is not accepting appointments")
	}
	if !provider.UserActive {
		return nil, apperrors.PolicyViolation("provider account is inactive")
	}

	patient, err := s.patientRepo.Get(ctx, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	if patient.ClinicID != provider.ClinicID {
		return nil, apperrors.PolicyViolation("provider and patient must belong to the same clinic")
	}
	if aptType == model.AppointmentTypeVideo && !provider.VideoConsultationEnabled {
		return nil, apperrors.PolicyViolation("provider does not offer video consultations")
	}

	return provider, nil
}

// validateSlot runs the ordered per-slot checks: the patient holds no other
// active appointment that date anywhere in the clinic, the slot is free,
// and the instant is not in the past. First failure wins.
func (s *Service) validateSlot(ctx context.Context, tx *sqlx.Tx, providerID, patientID uuid.UUID, date time.Time, slot string) error {
	hasSameDay, err := s.repo.HasActiveForPatientOnDate(ctx, tx, patientID, date)
	if err != nil {
		return fmt.Errorf("failed to check patient appointments: %w", err)
	}
	if hasSameDay {
		return apperrors.Conflict("patient already has an appointment on this date")
	}

	taken, err := s.repo.HasActiveAtSlot(ctx, tx, providerID, date, slot)
	if err != nil {
		return fmt.Errorf("failed to check slot availability: %w", err)
	}
	if taken {
		return apperrors.Conflict("this slot is already booked")
	}

	instant, err := slotInstant(date, slot)
	if err != nil {
		return apperrors.PolicyViolation("invalid time format")
	}
	if instant.Before(s.now()) {
		return apperrors.PolicyViolation("cannot book appointments in the past")
	}

	return nil
}

// assignQueueNumber implements the daily numbering: count of active
// appointments plus one, or a forced 1 for emergencies after shifting
// every scheduled or waiting appointment up by one. Numbers are assigned
// once and never compacted.
func (s *Service) assignQueueNumber(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time, emergency bool) (int, error) {
	if emergency {
		if err := s.repo.ShiftQueueNumbers(ctx, tx, providerID, date); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count, err := s.repo.CountActiveForProviderDate(ctx, tx, providerID, date)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

// EstimateWait is the booking-time estimate: slots ahead of this number.
func EstimateWait(queueNumber, slotDurationMinutes int) int {
	if queueNumber < 1 {
		return 0
	}
	return (queueNumber - 1) * slotDurationMinutes
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// CanCancel reports whether the actor may cancel the appointment now. A nil
// error means yes; otherwise the error carries the specific refusal.
func (s *Service) CanCancel(ctx context.Context, apt *model.Appointment, actor model.Actor) error {
	if apt.Status == model.AppointmentStatusCompleted || apt.Status == model.AppointmentStatusCancelled {
		return apperrors.InvalidState("appointment is already completed or cancelled")
	}

	if err := s.authorizeActor(ctx, apt, actor); err != nil {
		return err
	}

	settings, err := s.settingsRepo.Get(ctx, apt.ClinicID)
	if err != nil {
		return fmt.Errorf("failed to get clinic settings: %w", err)
	}

	window := time.Duration(settings.CancellationWindowHours) * time.Hour
	if apt.DateTime().Sub(s.now()) < window {
		return apperrors.PolicyViolation(fmt.Sprintf(
			"appointments must be cancelled at least %d hours in advance", settings.CancellationWindowHours))
	}

	return nil
}

func (s *Service) authorizeActor(ctx context.Context, apt *model.Appointment, actor model.Actor) error {
	patient, err := s.patientRepo.Get(ctx, apt.PatientID)
	if err != nil {
		return fmt.Errorf("failed to get patient: %w", err)
	}

	if patient.UserID == actor.UserID {
		return nil
	}
	if actor.IsStaff() && actor.ClinicID == apt.ClinicID {
		return nil
	}
	return apperrors.Unauthorized("not permitted to modify this appointment")
}

// Cancel transitions the appointment to cancelled, closes any queue entry
// and recalculates wait times for the provider's remaining waiting set.
// Queue numbers of other appointments are left untouched.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor model.Actor, reason string) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.CanCancel(ctx, apt, actor); err != nil {
		return nil, err
	}

	provider, err := s.providerRepo.Get(ctx, apt.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	apt.Status = model.AppointmentStatusCancelled
	apt.CancellationReason = &reason
	cancelledBy := actor.UserID
	apt.CancelledBy = &cancelledBy

	err = s.tx.WithProviderDayLock(ctx, apt.ProviderID, apt.Date, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, apt); err != nil {
			return err
		}
		if err := s.queueRepo.CloseByAppointment(ctx, tx, apt.ID); err != nil {
			return err
		}
		return s.recalc.RecalculateTx(ctx, tx, apt.ProviderID, provider.SlotDurationMinutes, apt.Date)
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, event.PatientChannel(apt.PatientID), event.TopicAppointmentCancelled, map[string]interface{}{
		"appointment_id": apt.ID,
	})
	s.emitter.Emit(ctx, event.ClinicChannel(apt.ClinicID), event.TopicAppointmentCancelled, map[string]interface{}{
		"appointment_id": apt.ID,
		"provider_id":    apt.ProviderID,
	})

	return apt, nil
}

// Reschedule is a booking replacement guarded by the cancellation rule: the
// new slot passes the same validation as a fresh booking, gets a fresh
// queue number and resets the appointment to scheduled.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, actor model.Actor, req *model.RescheduleAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.CanCancel(ctx, apt, actor); err != nil {
		return nil, err
	}

	newDate, err := time.Parse("2006-01-02", req.NewDate)
	if err != nil {
		return nil, apperrors.PolicyViolation("invalid date format")
	}

	provider, err := s.validateParticipants(ctx, apt.ProviderID, apt.PatientID, apt.Type)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithProviderDayLock(ctx, apt.ProviderID, newDate, func(tx *sqlx.Tx) error {
		if err := s.validateSlot(ctx, tx, apt.ProviderID, apt.PatientID, newDate, req.NewTime); err != nil {
			return err
		}

		number, err := s.assignQueueNumber(ctx, tx, apt.ProviderID, newDate, false)
		if err != nil {
			return err
		}

		apt.Date = newDate
		apt.Time = req.NewTime
		apt.QueueNumber = number
		apt.EstimatedWaitMinutes = EstimateWait(number, provider.SlotDurationMinutes)
		apt.Status = model.AppointmentStatusScheduled

		return s.repo.UpdateScheduleTx(ctx, tx, apt)
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, event.PatientChannel(apt.PatientID), event.TopicAppointmentRescheduled, map[string]interface{}{
		"appointment_id": apt.ID,
		"new_date":       apt.Date.Format("2006-01-02"),
		"new_time":       apt.Time,
	})

	return apt, nil
}

func (s *Service) countFailure(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.BookingFailures.WithLabelValues(failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch apperrors.Kind(err) {
	case apperrors.ErrNotFound:
		return "not_found"
	case apperrors.ErrConflict:
		return "conflict"
	case apperrors.ErrPolicyViolation:
		return "policy"
	case apperrors.ErrUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

func slotInstant(date time.Time, slot string) (time.Time, error) {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
