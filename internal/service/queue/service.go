package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-queue-api/internal/model"
	"github.com/jwalitptl/clinic-queue-api/internal/repository"
	"github.com/jwalitptl/clinic-queue-api/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
	"github.com/jwalitptl/clinic-queue-api/pkg/metrics"
)

// Service drives queue entries through the daily consultation flow and
// keeps wait-time estimates for the waiting set current. Every mutation
// runs under the provider-day lock so position rewrites, check-ins and
// calls for the same provider cannot interleave.
type Service struct {
	tx           repository.TxManager
	repo         repository.QueueRepository
	aptRepo      repository.AppointmentRepository
	providerRepo repository.ProviderRepository
	emitter      *event.Emitter
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	tx repository.TxManager,
	repo repository.QueueRepository,
	aptRepo repository.AppointmentRepository,
	providerRepo repository.ProviderRepository,
	emitter *event.Emitter,
	m *metrics.Metrics,
) *Service {
	return &Service{
		tx:           tx,
		repo:         repo,
		aptRepo:      aptRepo,
		providerRepo: providerRepo,
		emitter:      emitter,
		metrics:      m,
		now:          time.Now,
	}
}

// CheckIn marks the patient as arrived: the appointment moves to waiting
// and a queue entry is created (or reopened) at the appointment's queue
// number. Wait times for the whole waiting set are recalculated under the
// same lock.
func (s *Service) CheckIn(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	apt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusScheduled {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot check in appointment in status %s", apt.Status))
	}

	provider, err := s.providerRepo.Get(ctx, apt.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	arrival := s.now()
	entry := &model.QueueEntry{
		AppointmentID: apt.ID,
		PatientID:     apt.PatientID,
		ProviderID:    apt.ProviderID,
		ClinicID:      apt.ClinicID,
		QueuePosition: apt.QueueNumber,
		Status:        model.QueueStatusWaiting,
		ArrivalTime:   &arrival,
	}

	err = s.tx.WithProviderDayLock(ctx, apt.ProviderID, apt.Date, func(tx *sqlx.Tx) error {
		if err := s.repo.Upsert(ctx, tx, entry); err != nil {
			return err
		}
		apt.Status = model.AppointmentStatusWaiting
		if err := s.aptRepo.Update(ctx, tx, apt); err != nil {
			return err
		}
		return s.RecalculateTx(ctx, tx, apt.ProviderID, provider.SlotDurationMinutes, apt.Date)
	})
	if err != nil {
		return nil, err
	}

	s.transition("checked_in")
	s.emitter.Emit(ctx, event.PatientChannel(apt.PatientID), event.TopicQueueCheckedIn, map[string]interface{}{
		"appointment_id": apt.ID,
		"provider_id":    apt.ProviderID,
		"queue_position": entry.QueuePosition,
	})
	s.emitter.Emit(ctx, event.ClinicChannel(apt.ClinicID), event.TopicQueueUpdated, map[string]interface{}{
		"provider_id": apt.ProviderID,
	})

	return entry, nil
}

// CallNext picks the waiting entry with the lowest position for today and
// transitions it to called. Returns a not found error when nobody is
// waiting.
func (s *Service) CallNext(ctx context.Context, providerID uuid.UUID) (*model.QueueEntry, error) {
	day := s.now()
	var entry *model.QueueEntry
	var apt *model.Appointment
	err := s.tx.WithProviderDayLock(ctx, providerID, day, func(tx *sqlx.Tx) error {
		next, err := s.repo.NextWaiting(ctx, tx, providerID, day)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NotFound("waiting patient", err)
			}
			return err
		}
		calledAt := s.now()
		next.Status = model.QueueStatusCalled
		next.CalledAt = &calledAt
		if err := s.repo.Update(ctx, tx, next); err != nil {
			return err
		}

		apt, err = s.getAppointment(ctx, next.AppointmentID)
		if err != nil {
			return err
		}
		apt.Status = model.AppointmentStatusCalled
		if err := s.aptRepo.Update(ctx, tx, apt); err != nil {
			return err
		}

		entry = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transition("called")
	s.emitter.Emit(ctx, event.PatientChannel(apt.PatientID), event.TopicQueueYourTurn, map[string]interface{}{
		"appointment_id": apt.ID,
	})
	s.emitter.Emit(ctx, event.ClinicChannel(entry.ClinicID), event.TopicQueuePatientCalled, map[string]interface{}{
		"appointment_id": entry.AppointmentID,
		"provider_id":    entry.ProviderID,
		"queue_position": entry.QueuePosition,
	})

	return entry, nil
}

// StartConsultation moves a called entry into consultation and stamps the
// appointment's actual start time.
func (s *Service) StartConsultation(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	apt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	entry, err := s.getEntry(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.QueueStatusCalled {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot start consultation from queue status %s", entry.Status))
	}

	startedAt := s.now()
	entry.Status = model.QueueStatusInConsultation
	entry.ConsultationStartAt = &startedAt
	apt.Status = model.AppointmentStatusInProgress
	apt.ActualStartTime = &startedAt

	err = s.tx.WithProviderDayLock(ctx, apt.ProviderID, apt.Date, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, entry); err != nil {
			return err
		}
		return s.aptRepo.Update(ctx, tx, apt)
	})
	if err != nil {
		return nil, err
	}

	s.transition("in_consultation")
	s.emitter.Emit(ctx, event.ClinicChannel(apt.ClinicID), event.TopicAppointmentStatusChanged, map[string]interface{}{
		"appointment_id": apt.ID,
		"status":         apt.Status,
	})

	return entry, nil
}

// CompleteConsultation closes the entry, records the consultation outcome
// on the appointment and recalculates the remaining waiting set.
func (s *Service) CompleteConsultation(ctx context.Context, appointmentID uuid.UUID, data *model.ConsultationData) (*model.Appointment, error) {
	apt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	entry, err := s.getEntry(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.QueueStatusInConsultation {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot complete consultation from queue status %s", entry.Status))
	}

	provider, err := s.providerRepo.Get(ctx, apt.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	endedAt := s.now()
	entry.Status = model.QueueStatusCompleted
	entry.CompletedAt = &endedAt
	apt.Status = model.AppointmentStatusCompleted
	apt.ActualEndTime = &endedAt
	if data != nil {
		apt.ConsultationNotes = data.Notes
		apt.Diagnosis = data.Diagnosis
		apt.Prescriptions = data.Prescriptions
		apt.FollowUpDate = data.FollowUpDate
	}

	err = s.tx.WithProviderDayLock(ctx, apt.ProviderID, apt.Date, func(tx *sqlx.Tx) error {
		if err := s.repo.Update(ctx, tx, entry); err != nil {
			return err
		}
		if err := s.aptRepo.Update(ctx, tx, apt); err != nil {
			return err
		}
		return s.RecalculateTx(ctx, tx, apt.ProviderID, provider.SlotDurationMinutes, apt.Date)
	})
	if err != nil {
		return nil, err
	}

	s.transition("completed")
	s.emitter.Emit(ctx, event.PatientChannel(apt.PatientID), event.TopicAppointmentCompleted, map[string]interface{}{
		"appointment_id": apt.ID,
	})
	s.emitter.Emit(ctx, event.ClinicChannel(apt.ClinicID), event.TopicQueueUpdated, map[string]interface{}{
		"provider_id": apt.ProviderID,
	})

	return apt, nil
}

// MarkNoShow transitions a scheduled or waiting appointment to no-show,
// closes any queue entry and recalculates wait times. The slot frees up
// for future bookings; queue numbers already handed out do not change.
func (s *Service) MarkNoShow(ctx context.Context, appointmentID uuid.UUID) (*model.Appointment, error) {
	apt, err := s.getAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.Status != model.AppointmentStatusScheduled && apt.Status != model.AppointmentStatusWaiting {
		return nil, apperrors.InvalidState(fmt.Sprintf("cannot mark appointment in status %s as no-show", apt.Status))
	}

	provider, err := s.providerRepo.Get(ctx, apt.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	apt.Status = model.AppointmentStatusNoShow
	err = s.tx.WithProviderDayLock(ctx, apt.ProviderID, apt.Date, func(tx *sqlx.Tx) error {
		if err := s.aptRepo.Update(ctx, tx, apt); err != nil {
			return err
		}
		if err := s.repo.CloseByAppointment(ctx, tx, apt.ID); err != nil {
			return err
		}
		return s.RecalculateTx(ctx, tx, apt.ProviderID, provider.SlotDurationMinutes, apt.Date)
	})
	if err != nil {
		return nil, err
	}

	s.transition("no_show")
	s.emitter.Emit(ctx, event.ClinicChannel(apt.ClinicID), event.TopicQueueUpdated, map[string]interface{}{
		"provider_id": apt.ProviderID,
	})

	return apt, nil
}

// Reorder rewrites the positions of the provider's waiting entries to match
// the given order: the first id gets position 1, the second 2 and so on.
// Ids that are not currently waiting are rejected; waiting entries omitted
// from the list are renumbered after the supplied ones in their previous
// relative order, keeping positions unique across the waiting set.
func (s *Service) Reorder(ctx context.Context, providerID uuid.UUID, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return apperrors.PolicyViolation("entry list must not be empty")
	}

	day := s.now()
	provider, err := s.providerRepo.Get(ctx, providerID)
	if err != nil {
		return fmt.Errorf("failed to get provider: %w", err)
	}

	var clinicID uuid.UUID
	err = s.tx.WithProviderDayLock(ctx, providerID, day, func(tx *sqlx.Tx) error {
		waiting, err := s.repo.ListWaiting(ctx, tx, providerID, day)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*model.QueueEntry, len(waiting))
		for _, e := range waiting {
			byID[e.ID] = e
		}

		positions := make(map[uuid.UUID]int, len(waiting))
		for i, id := range entryIDs {
			e, ok := byID[id]
			if !ok {
				return apperrors.Conflict(fmt.Sprintf("entry %s is not in the waiting queue", id))
			}
			if _, dup := positions[id]; dup {
				return apperrors.Conflict(fmt.Sprintf("entry %s appears more than once", id))
			}
			positions[id] = i + 1
			clinicID = e.ClinicID
		}

		// Omitted waiting entries move behind the supplied ones, in their
		// previous relative order. waiting is already ordered by position.
		next := len(entryIDs) + 1
		for _, e := range waiting {
			if _, ok := positions[e.ID]; ok {
				continue
			}
			positions[e.ID] = next
			next++
		}

		if err := s.repo.UpdatePositions(ctx, tx, positions); err != nil {
			return err
		}
		return s.RecalculateTx(ctx, tx, providerID, provider.SlotDurationMinutes, day)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ReorderOperations.Inc()
	}
	s.emitter.Emit(ctx, event.ClinicChannel(clinicID), event.TopicQueueReordered, map[string]interface{}{
		"provider_id": providerID,
	})

	return nil
}

// RecalculateTx rewrites wait-time estimates for the waiting set ordered by
// position: the first waiting patient gets 0, the second one slot duration,
// and so on. New estimates are written in one statement and one
// wait-time event is emitted per changed row.
func (s *Service) RecalculateTx(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, slotDurationMinutes int, day time.Time) error {
	waiting, err := s.repo.ListWaiting(ctx, tx, providerID, day)
	if err != nil {
		return err
	}

	waits := make(map[uuid.UUID]int, len(waiting))
	changed := make([]*model.QueueEntry, 0, len(waiting))
	for rank, e := range waiting {
		waits[e.AppointmentID] = rank * slotDurationMinutes
		changed = append(changed, e)
	}

	if len(waits) > 0 {
		if err := s.repo.BulkUpdateWaitTimes(ctx, tx, waits); err != nil {
			return err
		}
	}

	if s.metrics != nil {
		s.metrics.WaitTimeRecalcs.Inc()
		s.metrics.RecalcBatchSize.Observe(float64(len(waiting)))
		s.metrics.QueueDepth.WithLabelValues(providerID.String()).Set(float64(len(waiting)))
	}

	for rank, e := range changed {
		s.emitter.Emit(ctx, event.PatientChannel(e.PatientID), event.TopicQueueWaitTimeUpdated, map[string]interface{}{
			"appointment_id":         e.AppointmentID,
			"estimated_wait_minutes": rank * slotDurationMinutes,
		})
	}

	return nil
}

// TodayQueue returns all of the provider's open entries for today, ordered
// by position.
func (s *Service) TodayQueue(ctx context.Context, providerID uuid.UUID) ([]*model.QueueEntry, error) {
	entries, err := s.repo.ListForDay(ctx, providerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	if entries == nil {
		entries = []*model.QueueEntry{}
	}
	return entries, nil
}

// Stats summarizes today's queue for one provider.
func (s *Service) Stats(ctx context.Context, providerID uuid.UUID) (*model.QueueStats, error) {
	stats, err := s.repo.Stats(ctx, providerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load queue stats: %w", err)
	}
	return stats, nil
}

func (s *Service) getAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.aptRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) getEntry(ctx context.Context, appointmentID uuid.UUID) (*model.QueueEntry, error) {
	entry, err := s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("queue entry", err)
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return entry, nil
}

func (s *Service) transition(name string) {
	if s.metrics != nil {
		s.metrics.QueueTransitions.WithLabelValues(name).Inc()
	}
}
