package postgres

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
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{BaseRepository: NewBaseRepository(db)}
}

const appointmentColumns = `
	id, patient_id, provider_id, clinic_id, scheduled_date, scheduled_time,
	appointment_type, status, queue_number, estimated_wait_minutes, is_emergency,
	consultation_notes, diagnosis, prescriptions, follow_up_date,
	actual_start_time, actual_end_time, cancellation_reason, cancelled_by,
	created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, provider_id, clinic_id, scheduled_date, scheduled_time,
			appointment_type, status, queue_number, estimated_wait_minutes, is_emergency,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.ProviderID,
		appointment.ClinicID,
		appointment.Date,
		appointment.Time,
		appointment.Type,
		appointment.Status,
		appointment.QueueNumber,
		appointment.EstimatedWaitMinutes,
		appointment.IsEmergency,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// Update rewrites the status and outcome fields. It always runs inside the
// provider-day transaction so a failed companion write rolls it back too.
func (r *appointmentRepository) Update(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, estimated_wait_minutes = $2,
			consultation_notes = $3, diagnosis = $4, prescriptions = $5, follow_up_date = $6,
			actual_start_time = $7, actual_end_time = $8,
			cancellation_reason = $9, cancelled_by = $10, updated_at = $11
		WHERE id = $12
	`
	appointment.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		appointment.Status,
		appointment.EstimatedWaitMinutes,
		appointment.ConsultationNotes,
		appointment.Diagnosis,
		appointment.Prescriptions,
		appointment.FollowUpDate,
		appointment.ActualStartTime,
		appointment.ActualEndTime,
		appointment.CancellationReason,
		appointment.CancelledBy,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	return nil
}

// UpdateScheduleTx rewrites the booking fields set when an appointment is
// rescheduled. Runs inside the provider-day transaction.
func (r *appointmentRepository) UpdateScheduleTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET scheduled_date = $1, scheduled_time = $2, queue_number = $3,
			estimated_wait_minutes = $4, status = $5, updated_at = $6
		WHERE id = $7
	`
	appointment.UpdatedAt = time.Now()

	result, err := tx.ExecContext(ctx, query,
		appointment.Date,
		appointment.Time,
		appointment.QueueNumber,
		appointment.EstimatedWaitMinutes,
		appointment.Status,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	args := []interface{}{}
	argCount := 1

	if filters.ProviderID != uuid.Nil {
		query += fmt.Sprintf(" AND provider_id = $%d", argCount)
		args = append(args, filters.ProviderID)
		argCount++
	}

	if filters.PatientID != uuid.Nil {
		query += fmt.Sprintf(" AND patient_id = $%d", argCount)
		args = append(args, filters.PatientID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_date >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}

	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND scheduled_date <= $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY scheduled_date ASC, queue_number ASC"

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountActiveForProviderDate(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE provider_id = $1
		AND scheduled_date = $2
		AND status != 'cancelled'
	`
	var count int
	err := tx.GetContext(ctx, &count, query, providerID, date)
	if err != nil {
		return 0, fmt.Errorf("failed to count active appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) HasActiveAtSlot(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time, slot string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE provider_id = $1
			AND scheduled_date = $2
			AND scheduled_time = $3
			AND status NOT IN ('cancelled', 'no_show')
		)
	`
	var exists bool
	err := tx.GetContext(ctx, &exists, query, providerID, date, slot)
	if err != nil {
		return false, fmt.Errorf("failed to check slot: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) HasActiveForPatientOnDate(ctx context.Context, tx *sqlx.Tx, patientID uuid.UUID, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			AND scheduled_date = $2
			AND status NOT IN ('cancelled', 'no_show')
		)
	`
	var exists bool
	err := tx.GetContext(ctx, &exists, query, patientID, date)
	if err != nil {
		return false, fmt.Errorf("failed to check patient appointments: %w", err)
	}
	return exists, nil
}

func (r *appointmentRepository) BookedTimes(ctx context.Context, providerID uuid.UUID, date time.Time) ([]string, error) {
	query := `
		SELECT scheduled_time FROM appointments
		WHERE provider_id = $1
		AND scheduled_date = $2
		AND status NOT IN ('cancelled', 'no_show')
		ORDER BY scheduled_time ASC
	`
	var times []string
	err := r.db.SelectContext(ctx, &times, query, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked times: %w", err)
	}
	return times, nil
}

// ShiftQueueNumbers bumps every scheduled or waiting appointment for the
// provider day by one, making room for an emergency insertion at number 1.
func (r *appointmentRepository) ShiftQueueNumbers(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, date time.Time) error {
	query := `
		UPDATE appointments
		SET queue_number = queue_number + 1, updated_at = $1
		WHERE provider_id = $2
		AND scheduled_date = $3
		AND status IN ('scheduled', 'waiting')
	`
	_, err := tx.ExecContext(ctx, query, time.Now(), providerID, date)
	if err != nil {
		return fmt.Errorf("failed to shift queue numbers: %w", err)
	}
	return nil
}

// ListStaleScheduled returns scheduled or waiting appointments whose slot
// instant is older than cutoff. Used by the no-show sweep.
func (r *appointmentRepository) ListStaleScheduled(ctx context.Context, cutoff time.Time) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status IN ('scheduled', 'waiting')
		AND scheduled_date + scheduled_time::time < $1
		ORDER BY scheduled_date ASC, scheduled_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale appointments: %w", err)
	}
	return appointments, nil
}
